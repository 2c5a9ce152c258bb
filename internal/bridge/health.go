package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/hub"
)

const defaultHealthInterval = 30 * time.Second

// HealthPublisher is the broker surface used for health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Hub       string
	Topic     string
	Version   string
	Interval  time.Duration
	Publisher HealthPublisher
	State     StateSource
	Logger    Logger
}

// HealthReporter publishes retained health messages at a fixed interval
// and whenever the status changes.
type HealthReporter struct {
	cfg       HealthReporterConfig
	startTime time.Time
	now       func() time.Time

	mu         sync.Mutex
	refreshErr error
	last       HealthStatus

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter. Call Start to begin the interval loop.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultHealthInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}
	return &HealthReporter{
		cfg:       cfg,
		startTime: time.Now(),
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start publishes the current status and begins periodic reporting until
// ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	if err := h.PublishNow(); err != nil {
		h.cfg.Logger.Warn("failed to publish initial health", "error", err)
	}
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends the loop and publishes a final stopping status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		if err := h.publish(HealthStopping, "bridge stopping"); err != nil {
			h.cfg.Logger.Debug("failed to publish stopping status", "error", err)
		}
	})
}

// PublishStarting publishes a starting status.
func (h *HealthReporter) PublishStarting() error {
	return h.publish(HealthStarting, "bridge starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

// RecordRefresh stores the outcome of the latest session refresh and
// publishes immediately if that changes the status.
func (h *HealthReporter) RecordRefresh(err error) {
	h.mu.Lock()
	h.refreshErr = err
	last := h.last
	h.mu.Unlock()

	status, reason := h.determineStatus()
	if status == last {
		return
	}
	if err := h.publish(status, reason); err != nil {
		h.cfg.Logger.Warn("failed to publish health", "error", err)
	}
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.cfg.Logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	h.mu.Lock()
	refreshErr := h.refreshErr
	h.mu.Unlock()

	switch {
	case h.cfg.Publisher == nil || !h.cfg.Publisher.IsConnected():
		return HealthDegraded, "MQTT disconnected"
	case h.cfg.State == nil || !h.cfg.State.Ready():
		return HealthDegraded, "hub session not initialised"
	case refreshErr != nil:
		return HealthDegraded, "last refresh failed: " + hub.ErrorCode(refreshErr)
	default:
		return HealthHealthy, ""
	}
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	now := h.now()
	msg := HealthMessage{
		Hub:           h.cfg.Hub,
		Timestamp:     now.UTC(),
		Status:        status,
		Version:       h.cfg.Version,
		UptimeSeconds: int64(now.Sub(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.cfg.State != nil {
		msg.Generation = h.cfg.State.Generation()
		if at := h.cfg.State.LastRefresh(); !at.IsZero() {
			at = at.UTC()
			msg.LastRefresh = &at
		}
	}
	return msg
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.cfg.Publisher == nil {
		return nil
	}
	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	if err := h.cfg.Publisher.Publish(h.cfg.Topic, payload, 1, true); err != nil {
		return err
	}

	h.mu.Lock()
	h.last = status
	h.mu.Unlock()
	return nil
}
