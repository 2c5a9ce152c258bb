package metrics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/hub/hubtest"
	"github.com/nerrad567/uc-remote-core/internal/session"
)

func TestMetrics_ObserveDispatch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveDispatch(dispatch.KindButton, "ok", 1, 10*time.Millisecond)
	m.ObserveDispatch(dispatch.KindButton, "ok", 2, 10*time.Millisecond)
	m.ObserveDispatch(dispatch.KindIR, "unreachable", 4, time.Second)

	if got := testutil.ToFloat64(m.DispatchTotal.WithLabelValues("button", "ok")); got != 2 {
		t.Errorf("button ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DispatchTotal.WithLabelValues("ir", "unreachable")); got != 1 {
		t.Errorf("ir unreachable = %v, want 1", got)
	}
}

func TestMetrics_DispatcherObserver(t *testing.T) {
	m := New(prometheus.NewRegistry())
	f := hubtest.New()
	s := session.New(session.Config{BaseURL: "http://remote.test/api/"}, f)
	d := dispatch.New(s.API(), s.Model(), dispatch.Config{}, dispatch.WithObserver(m))

	if _, err := d.SendSystem(context.Background(), "BOGUS"); !errors.Is(err, hub.ErrNotFound) {
		t.Fatalf("SendSystem() error = %v", err)
	}
	if got := testutil.ToFloat64(m.DispatchTotal.WithLabelValues("system", "not_found")); got != 1 {
		t.Errorf("system not_found = %v, want 1", got)
	}
}

func TestMetrics_RefreshHook(t *testing.T) {
	m := New(prometheus.NewRegistry())

	f := hubtest.New()
	f.JSON(http.MethodGet, "system", `{"model_name":"Remote Two","model_number":"UCR2"}`)
	f.JSON(http.MethodGet, "system/power/battery", `{"capacity":64,"status":"CHARGING","power_supply":true}`)
	f.JSON(http.MethodGet, "activities", `[{"entity_id":"a1","name":"TV","attributes":{"state":"ON"}}]`)
	f.JSON(http.MethodGet, "activities/a1", `{"entity_id":"a1","name":"TV","attributes":{"state":"ON"}}`)

	s := session.New(session.Config{BaseURL: "http://remote.test/api/"}, f)
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	hook := m.RefreshHook(s)
	hook(context.Background(), session.RefreshResult{Generation: 1, Duration: time.Millisecond})
	hook(context.Background(), session.RefreshResult{Generation: 1, Err: hub.ErrUnreachable})

	if got := testutil.ToFloat64(m.RefreshTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("refresh ok = %v", got)
	}
	if got := testutil.ToFloat64(m.RefreshTotal.WithLabelValues("unreachable")); got != 1 {
		t.Errorf("refresh unreachable = %v", got)
	}
	if got := testutil.ToFloat64(m.BatteryLevel); got != 64 {
		t.Errorf("battery = %v", got)
	}
	if got := testutil.ToFloat64(m.Charging); got != 1 {
		t.Errorf("charging = %v", got)
	}
	if got := testutil.ToFloat64(m.ActivitiesOn); got != 1 {
		t.Errorf("activities on = %v", got)
	}
	if got := testutil.ToFloat64(m.Generation); got != 1 {
		t.Errorf("generation = %v", got)
	}
}

func TestMetrics_ObserveDiscovery(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveDiscovery(3)
	if got := testutil.ToFloat64(m.DiscoveryCandidates); got != 3 {
		t.Errorf("candidates = %v", got)
	}
}
