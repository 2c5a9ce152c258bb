// Package mqtt connects UC Remote Core to an MQTT broker.
//
// The broker is the home-automation side of the system: the bridge package
// publishes retained hub, activity and dock state here and listens for
// commands from other controllers.
//
// This package manages:
//   - Connection with auto-reconnect and subscription restoration
//   - Publishing with QoS and payload size limits
//   - Last Will and Testament on ucremote/system/status
//   - Topic builders for the per-hub topic tree
//
// Topic tree:
//
//	ucremote/state/{hub}/hub              retained hub status
//	ucremote/state/{hub}/activity/{id}    retained activity state
//	ucremote/state/{hub}/dock/{id}        retained dock state
//	ucremote/command/{hub}                inbound commands
//	ucremote/ack/{hub}                    command results
//	ucremote/health/{hub}                 retained bridge health
//	ucremote/system/status                online/offline (LWT)
//
// Usage:
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.NewTopics("remote-two")
//	err = client.Subscribe(topics.Command(), 1, func(topic string, payload []byte) error {
//	    return handle(payload)
//	})
package mqtt
