package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemStatus is the body of GET /system/status.
type SystemStatus struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Session       SessionMetrics `json:"session"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
	PendingTickets   int `json:"pending_tickets"`
}

// SessionMetrics summarises the hub session.
type SessionMetrics struct {
	Ready       bool       `json:"ready"`
	Generation  uint64     `json:"generation"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`
	Activities  int        `json:"activities"`
	Entities    int        `json:"entities"`
	Docks       int        `json:"docks"`
}

// handleSystemStatus returns process and session statistics.
// Prometheus scrapers should use /metrics instead.
func (s *Server) handleSystemStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			PendingTickets:   s.tickets.count(),
		},
		Session: SessionMetrics{
			Ready:      s.state.Ready(),
			Generation: s.state.Generation(),
		},
	}

	if last := s.state.LastRefresh(); !last.IsZero() {
		at := last.UTC()
		status.Session.LastRefresh = &at
	}
	if status.Session.Ready {
		snap := s.state.Snapshot()
		status.Session.Activities = len(snap.Activities)
		status.Session.Entities = len(snap.Entities)
		status.Session.Docks = len(snap.Docks)
	}

	writeJSON(w, http.StatusOK, status)
}
