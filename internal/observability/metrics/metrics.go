// Package metrics exposes Prometheus collectors for command dispatch,
// session refreshes, discovery and the last known hub status.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/session"
)

const namespace = "ucremote"

// Metrics bundles the collectors.
type Metrics struct {
	DispatchTotal    *prometheus.CounterVec
	DispatchAttempts *prometheus.HistogramVec
	DispatchDuration *prometheus.HistogramVec

	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	Generation      prometheus.Gauge

	DiscoveryCandidates prometheus.Gauge

	BatteryLevel prometheus.Gauge
	Charging     prometheus.Gauge
	ActivitiesOn prometheus.Gauge
}

// New constructs the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Commands dispatched by kind and result",
			},
			[]string{"kind", "result"},
		),
		DispatchAttempts: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_attempts",
				Help:      "Requests sent per dispatched command, retries included",
				Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 16},
			},
			[]string{"kind"},
		),
		DispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Dispatch latency in seconds, backoff included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_total",
				Help:      "Periodic session refreshes by result",
			},
			[]string{"result"},
		),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Session refresh latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_generation",
			Help:      "Number of refreshes applied to the model",
		}),
		DiscoveryCandidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "discovery_candidates",
			Help:      "Hubs found by the last discovery run",
		}),
		BatteryLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_battery_percent",
			Help:      "Last reported hub battery level",
		}),
		Charging: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_charging",
			Help:      "1 when the hub was last seen on external power",
		}),
		ActivitiesOn: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "activities_on",
			Help:      "Activities currently ON",
		}),
	}
	reg.MustRegister(
		m.DispatchTotal,
		m.DispatchAttempts,
		m.DispatchDuration,
		m.RefreshTotal,
		m.RefreshDuration,
		m.Generation,
		m.DiscoveryCandidates,
		m.BatteryLevel,
		m.Charging,
		m.ActivitiesOn,
	)
	return m
}

// ObserveDispatch implements dispatch.Observer.
func (m *Metrics) ObserveDispatch(kind dispatch.Kind, code string, attempts int, elapsed time.Duration) {
	m.DispatchTotal.WithLabelValues(string(kind), code).Inc()
	m.DispatchAttempts.WithLabelValues(string(kind)).Observe(float64(attempts))
	m.DispatchDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// ObserveDiscovery records the size of a discovery result.
func (m *Metrics) ObserveDiscovery(candidates int) {
	m.DiscoveryCandidates.Set(float64(candidates))
}

// RefreshHook returns a session hook that records each refresh and the
// hub gauges that follow from it.
func (m *Metrics) RefreshHook(s *session.Session) session.RefreshHook {
	return func(_ context.Context, r session.RefreshResult) {
		m.RefreshTotal.WithLabelValues(hub.ErrorCode(r.Err)).Inc()
		m.RefreshDuration.Observe(r.Duration.Seconds())
		m.Generation.Set(float64(r.Generation))
		m.ObserveSession(s)
	}
}

// ObserveSession copies the session's hub status into the gauges.
func (m *Metrics) ObserveSession(s *session.Session) {
	if h, ok := s.Hub(); ok {
		m.BatteryLevel.Set(float64(h.BatteryLevel))
		m.Charging.Set(boolGauge(h.Charging))
	}
	m.ActivitiesOn.Set(float64(len(s.Model().ActiveActivities())))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
