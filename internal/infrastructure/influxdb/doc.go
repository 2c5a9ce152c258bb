// Package influxdb records hub telemetry in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Each successful
// session refresh produces one hub_status point (battery, charging, memory,
// storage, load, ambient light, active activities) and every dispatched
// command produces one dispatch point, so battery drain and command
// reliability can be charted over time.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteHubStatus(influxdb.HubSample{HubID: "remote-two", BatteryLevel: 80})
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous write
// failures are delivered to the SetOnError callback.
package influxdb
