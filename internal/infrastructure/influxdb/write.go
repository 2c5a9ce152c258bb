package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementHubStatus = "hub_status"
	MeasurementDispatch  = "dispatch"
)

// HubSample is one observation of the hub taken after a refresh.
type HubSample struct {
	HubID string
	At    time.Time

	BatteryLevel int
	Charging     bool

	MemoryTotalMB      float64
	MemoryAvailableMB  float64
	StorageTotalMB     float64
	StorageAvailableMB float64
	LoadOne            float64

	// AmbientLight is only written when HasAmbientLight is set; hubs without
	// the sensor omit the field rather than reporting zero.
	AmbientLight    float64
	HasAmbientLight bool

	ActivitiesOn int
	Generation   uint64
}

// WriteHubStatus records a hub_status point tagged with the hub id.
func (c *Client) WriteHubStatus(s HubSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(hubStatusPoint(s))
}

func hubStatusPoint(s HubSample) *write.Point {
	at := s.At
	if at.IsZero() {
		at = time.Now()
	}

	fields := map[string]any{
		"battery_level":        s.BatteryLevel,
		"charging":             s.Charging,
		"memory_total_mb":      s.MemoryTotalMB,
		"memory_available_mb":  s.MemoryAvailableMB,
		"storage_total_mb":     s.StorageTotalMB,
		"storage_available_mb": s.StorageAvailableMB,
		"load_one":             s.LoadOne,
		"activities_on":        s.ActivitiesOn,
		"generation":           s.Generation,
	}
	if s.HasAmbientLight {
		fields["ambient_light"] = s.AmbientLight
	}

	return write.NewPoint(MeasurementHubStatus, map[string]string{"hub": s.HubID}, fields, at)
}

// WriteDispatch records one command dispatch: its kind and result code as
// tags, attempts and duration as fields.
func (c *Client) WriteDispatch(hubID, kind, result string, attempts int, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		MeasurementDispatch,
		map[string]string{
			"hub":    hubID,
			"kind":   kind,
			"result": result,
		},
		map[string]any{
			"attempts":    attempts,
			"duration_ms": float64(elapsed) / float64(time.Millisecond),
		},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}
