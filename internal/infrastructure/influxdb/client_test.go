package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/infrastructure/config"
)

// fakeInflux answers /ping and forwards line-protocol bodies posted to
// /api/v2/write on a channel.
type fakeInflux struct {
	*httptest.Server
	writes     chan string
	pingStatus int
	writeCode  int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{
		writes:     make(chan string, 16),
		pingStatus: http.StatusNoContent,
		writeCode:  http.StatusNoContent,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(f.pingStatus)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			if f.writeCode == http.StatusNoContent {
				f.writes <- string(body)
			}
			w.WriteHeader(f.writeCode)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) config() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           f.URL,
		Token:         "test-token",
		Org:           "ucremote",
		Bucket:        "hub",
		BatchSize:     100,
		FlushInterval: 60,
	}
}

func (f *fakeInflux) nextWrite(t *testing.T) string {
	t.Helper()
	select {
	case body := <-f.writes:
		return body
	case <-time.After(5 * time.Second):
		t.Fatal("no write received")
		return ""
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Fatalf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFakeInflux(t)
	cfg := f.config()
	f.Close()

	_, err := Connect(context.Background(), cfg)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnectAndHealthCheck(t *testing.T) {
	f := newFakeInflux(t)
	cfg := f.config()
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	c, err := Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !c.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
	// Second Close and writes after Close are no-ops.
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	c.WriteHubStatus(HubSample{HubID: "late"})
	c.Flush()
}

func TestWriteHubStatus(t *testing.T) {
	f := newFakeInflux(t)
	c, err := Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	c.WriteHubStatus(HubSample{
		HubID:         "remote-two",
		At:            time.Unix(1700000000, 0),
		BatteryLevel:  80,
		Charging:      true,
		MemoryTotalMB: 2048,
		LoadOne:       0.5,
		ActivitiesOn:  1,
		Generation:    3,
	})
	c.Flush()

	body := f.nextWrite(t)
	for _, want := range []string{
		"hub_status,hub=remote-two ",
		"battery_level=80i",
		"charging=true",
		"memory_total_mb=2048",
		"activities_on=1i",
		"generation=3u",
		" 1700000000000000000",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
	if strings.Contains(body, "ambient_light") {
		t.Errorf("ambient_light written without sensor: %q", body)
	}
}

func TestWriteDispatch(t *testing.T) {
	f := newFakeInflux(t)
	c, err := Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	c.WriteDispatch("remote-two", "button", "ok", 2, 150*time.Millisecond)
	c.Flush()

	body := f.nextWrite(t)
	for _, want := range []string{
		"dispatch,hub=remote-two,kind=button,result=ok ",
		"attempts=2i",
		"duration_ms=150",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body %q missing %q", body, want)
		}
	}
}

func TestWriteErrorsReachCallback(t *testing.T) {
	f := newFakeInflux(t)
	f.writeCode = http.StatusBadRequest

	c, err := Connect(context.Background(), f.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	got := make(chan error, 4)
	c.SetOnError(func(err error) {
		select {
		case got <- err:
		default:
		}
	})

	c.WriteHubStatus(HubSample{HubID: "remote-two", AmbientLight: 12, HasAmbientLight: true})
	c.Flush()

	select {
	case err := <-got:
		if err == nil {
			t.Error("callback received nil error")
		}
	case <-time.After(5 * time.Second):
		t.Error("write error not delivered")
	}
	c.Close()
}

func TestHubStatusPoint_AmbientLight(t *testing.T) {
	p := hubStatusPoint(HubSample{HubID: "h", AmbientLight: 42, HasAmbientLight: true})
	found := false
	for _, field := range p.FieldList() {
		if field.Key == "ambient_light" {
			found = true
			if field.Value != 42.0 {
				t.Errorf("ambient_light = %v, want 42", field.Value)
			}
		}
	}
	if !found {
		t.Error("ambient_light missing")
	}
	if p.Time().IsZero() {
		t.Error("zero sample time should default to now")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
