package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/hub/hubtest"
	"github.com/nerrad567/uc-remote-core/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fastConfig keeps retry tests quick.
func fastConfig() Config {
	return Config{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		Multiplier:     2,
		RepeatDelay:    5 * time.Millisecond,
	}
}

func newTestModel(t *testing.T) *model.Model {
	t.Helper()
	m := model.New()
	_, err := m.Apply(m.BeginRefresh(), model.Update{
		Activities: []model.ActivityData{
			{ID: "act.tv", Name: "Watch TV", State: model.StateOn, EntityIDs: []string{}},
			{ID: "act.music", Name: "Music", State: model.StateOff, EntityIDs: []string{}},
		},
		Entities: []model.EntityData{},
		Docks: []model.DockData{
			{ID: "dock1", Name: "Living Dock", Ports: []model.IRPort{{ID: "1"}, {ID: "2"}}, ChargingCapable: true, Reachable: true},
			{ID: "dock2", Name: "Bedroom Dock", Reachable: true},
		},
		IRDevices: []model.IRDeviceData{
			{ID: "rem.tv", Name: "Samsung TV", CodesetID: "uc_samsung"},
			{ID: "rem.fan", Name: "Fan"},
		},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	return m
}

type recordingObserver struct {
	mu    sync.Mutex
	codes []string
}

func (o *recordingObserver) ObserveDispatch(_ Kind, code string, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes = append(o.codes, code)
}

func newTestDispatcher(t *testing.T, f *hubtest.Fake) (*Dispatcher, *model.Model, *recordingObserver) {
	t.Helper()
	m := newTestModel(t)
	obs := &recordingObserver{}
	return New(hub.NewAPI(f), m, fastConfig(), WithObserver(obs)), m, obs
}

func decodeBody(t *testing.T, req hub.Request) map[string]any {
	t.Helper()
	data, err := json.Marshal(req.Body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	return out
}

func TestDispatcher_UnresolvedNamesSendNothing(t *testing.T) {
	tests := []struct {
		name string
		call func(d *Dispatcher) (Result, error)
	}{
		{"start unknown activity", func(d *Dispatcher) (Result, error) {
			return d.StartActivity(context.Background(), "nonexistent")
		}},
		{"stop unknown activity", func(d *Dispatcher) (Result, error) {
			return d.StopActivity(context.Background(), "nonexistent")
		}},
		{"button unknown activity", func(d *Dispatcher) (Result, error) {
			return d.PressButton(context.Background(), Button{Name: "HOME", Activity: "nonexistent"})
		}},
		{"button empty name", func(d *Dispatcher) (Result, error) {
			return d.PressButton(context.Background(), Button{})
		}},
		{"ir unknown device", func(d *Dispatcher) (Result, error) {
			return d.SendIR(context.Background(), IR{Device: "Sony", Command: "POWER"})
		}},
		{"ir device without codeset", func(d *Dispatcher) (Result, error) {
			return d.SendIR(context.Background(), IR{Device: "Fan", Command: "POWER"})
		}},
		{"ir unknown dock", func(d *Dispatcher) (Result, error) {
			return d.SendIR(context.Background(), IR{Device: "Samsung TV", Command: "POWER", Dock: "Garage"})
		}},
		{"ir unknown port", func(d *Dispatcher) (Result, error) {
			return d.SendIR(context.Background(), IR{Device: "Samsung TV", Command: "POWER", Port: "9"})
		}},
		{"ir code empty", func(d *Dispatcher) (Result, error) {
			return d.SendIRCode(context.Background(), IRCode{Code: "  "})
		}},
		{"ir code unknown format", func(d *Dispatcher) (Result, error) {
			return d.SendIRCode(context.Background(), IRCode{Code: "0xE0E040BF", Format: "nec"})
		}},
		{"ir code unknown dock", func(d *Dispatcher) (Result, error) {
			return d.SendIRCode(context.Background(), IRCode{Code: "0xE0E040BF", Dock: "Garage"})
		}},
		{"ir code unknown port", func(d *Dispatcher) (Result, error) {
			return d.SendIRCode(context.Background(), IRCode{Code: "0xE0E040BF", Port: "9"})
		}},
		{"firmware without hub status", func(d *Dispatcher) (Result, error) {
			return d.StartFirmwareUpdate(context.Background())
		}},
		{"unknown system command", func(d *Dispatcher) (Result, error) {
			return d.SendSystem(context.Background(), "SELF_DESTRUCT")
		}},
		{"unknown dock charging", func(d *Dispatcher) (Result, error) {
			return d.SetDockCharging(context.Background(), "Garage", true)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := hubtest.New()
			d, _, _ := newTestDispatcher(t, f)

			_, err := tt.call(d)
			if !errors.Is(err, hub.ErrNotFound) {
				t.Fatalf("error = %v, want ErrNotFound", err)
			}
			if f.Total() != 0 {
				t.Errorf("sent %d requests, want 0", f.Total())
			}
		})
	}
}

func TestDispatcher_StartActivity(t *testing.T) {
	t.Run("already on", func(t *testing.T) {
		f := hubtest.New()
		d, _, _ := newTestDispatcher(t, f)

		res, err := d.StartActivity(context.Background(), "act.tv")
		if err != nil {
			t.Fatalf("StartActivity() error = %v", err)
		}
		if res.Outcome != OutcomeAlreadyInState || f.Total() != 0 {
			t.Errorf("Outcome = %v, requests = %d", res.Outcome, f.Total())
		}
	})

	t.Run("off to transitioning to on", func(t *testing.T) {
		f := hubtest.New()
		f.OK(http.MethodPut, "entities/act.music/command")
		d, m, _ := newTestDispatcher(t, f)

		res, err := d.StartActivity(context.Background(), "music")
		if err != nil {
			t.Fatalf("StartActivity() error = %v", err)
		}
		if res.Outcome != OutcomeSent || res.Calls != 1 || f.Total() != 1 {
			t.Errorf("result = %+v, requests = %d", res, f.Total())
		}

		body := decodeBody(t, f.Calls()[0])
		if body["cmd_id"] != hub.CmdActivityOn || body["entity_id"] != "act.music" {
			t.Errorf("body = %v", body)
		}

		music, _ := m.Activity("act.music")
		if music.State() != model.StateTransitioning {
			t.Fatalf("state = %s, want TRANSITIONING", music.State())
		}

		// A second start while the first is pending is not re-sent.
		if res, _ := d.StartActivity(context.Background(), "act.music"); res.Outcome != OutcomeAlreadyInState {
			t.Errorf("second start outcome = %v", res.Outcome)
		}

		if _, err := m.Apply(m.BeginRefresh(), model.Update{Activities: []model.ActivityData{
			{ID: "act.tv", Name: "Watch TV", State: model.StateOn},
			{ID: "act.music", Name: "Music", State: model.StateOn},
		}}); err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if music.State() != model.StateOn {
			t.Errorf("state after refresh = %s, want ON", music.State())
		}
	})
}

func TestDispatcher_StopActivity(t *testing.T) {
	f := hubtest.New()
	f.OK(http.MethodPut, "entities/act.tv/command")
	d, m, _ := newTestDispatcher(t, f)

	if _, err := d.StopActivity(context.Background(), "Watch TV"); err != nil {
		t.Fatalf("StopActivity() error = %v", err)
	}
	if body := decodeBody(t, f.Calls()[0]); body["cmd_id"] != hub.CmdActivityOff {
		t.Errorf("body = %v", body)
	}
	tv, _ := m.Activity("act.tv")
	if target, ok := tv.Target(); !ok || target != model.StateOff {
		t.Errorf("Target() = %s, %v", target, ok)
	}

	res, err := d.StopActivity(context.Background(), "act.music")
	if err != nil || res.Outcome != OutcomeAlreadyInState {
		t.Errorf("stop of OFF activity = %+v, %v", res, err)
	}
}

func TestDispatcher_StartFailureKeepsState(t *testing.T) {
	f := hubtest.New()
	f.Status(http.MethodPut, "entities/act.music/command", http.StatusBadRequest)
	d, m, _ := newTestDispatcher(t, f)

	_, err := d.StartActivity(context.Background(), "act.music")
	if !errors.Is(err, hub.ErrCommandFailed) {
		t.Fatalf("error = %v, want ErrCommandFailed", err)
	}
	music, _ := m.Activity("act.music")
	if music.State() != model.StateOff {
		t.Errorf("state = %s, want OFF", music.State())
	}
}

func TestDispatcher_PressButton(t *testing.T) {
	t.Run("repeat is sequential", func(t *testing.T) {
		f := hubtest.New()
		f.Delay = 2 * time.Millisecond
		f.OK(http.MethodPut, "entities/act.tv/command")
		d, _, _ := newTestDispatcher(t, f)

		start := time.Now()
		res, err := d.PressButton(context.Background(), Button{Name: "volume_up", Repeat: 3})
		if err != nil {
			t.Fatalf("PressButton() error = %v", err)
		}
		if res.Calls != 3 || f.Total() != 3 || res.Target != "act.tv" {
			t.Errorf("result = %+v, requests = %d", res, f.Total())
		}
		if f.MaxInFlight() != 1 {
			t.Errorf("MaxInFlight() = %d, want 1", f.MaxInFlight())
		}
		if elapsed := time.Since(start); elapsed < 2*fastConfig().RepeatDelay {
			t.Errorf("repeats not paced: %v", elapsed)
		}

		body := decodeBody(t, f.Calls()[0])
		params, _ := body["params"].(map[string]any)
		if body["cmd_id"] != hub.CmdRemoteSend || params["command"] != "VOLUME_UP" {
			t.Errorf("body = %v", body)
		}
		if _, ok := params["hold"]; ok {
			t.Error("hold sent without Hold")
		}
	})

	t.Run("hold is one call", func(t *testing.T) {
		f := hubtest.New()
		f.OK(http.MethodPut, "entities/act.music/command")
		d, _, _ := newTestDispatcher(t, f)

		_, err := d.PressButton(context.Background(), Button{Name: "POWER", Activity: "Music", Hold: 1500 * time.Millisecond})
		if err != nil {
			t.Fatalf("PressButton() error = %v", err)
		}
		if f.Total() != 1 {
			t.Fatalf("requests = %d, want 1", f.Total())
		}
		params, _ := decodeBody(t, f.Calls()[0])["params"].(map[string]any)
		if params["hold"] != float64(1500) {
			t.Errorf("hold = %v, want 1500", params["hold"])
		}
	})

	t.Run("no activity on", func(t *testing.T) {
		f := hubtest.New()
		m := model.New()
		_, _ = m.Apply(m.BeginRefresh(), model.Update{Activities: []model.ActivityData{ //nolint:errcheck // fresh model
			{ID: "act.music", Name: "Music", State: model.StateOff},
		}})
		d := New(hub.NewAPI(f), m, fastConfig())

		if _, err := d.PressButton(context.Background(), Button{Name: "HOME"}); !errors.Is(err, hub.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
		if f.Total() != 0 {
			t.Errorf("requests = %d, want 0", f.Total())
		}
	})

	t.Run("repeat stops at first failure", func(t *testing.T) {
		f := hubtest.New()
		f.Handle(http.MethodPut, "entities/act.tv/command", func(req hub.Request, n int) (*hub.Response, error) {
			if n == 2 {
				return nil, hubtest.HTTPFault(req, http.StatusUnprocessableEntity)
			}
			return &hub.Response{StatusCode: http.StatusOK}, nil
		})
		d, _, _ := newTestDispatcher(t, f)

		res, err := d.PressButton(context.Background(), Button{Name: "HOME", Repeat: 5})
		if !errors.Is(err, hub.ErrCommandFailed) {
			t.Fatalf("error = %v, want ErrCommandFailed", err)
		}
		if res.Calls != 1 || f.Total() != 2 {
			t.Errorf("calls = %d, requests = %d", res.Calls, f.Total())
		}
	})
}

func TestDispatcher_SendIR(t *testing.T) {
	f := hubtest.New()
	f.OK(http.MethodPut, "ir/emitters/dock1/send")
	f.OK(http.MethodPut, "ir/emitters/dock2/send")
	d, _, _ := newTestDispatcher(t, f)

	res, err := d.SendIR(context.Background(), IR{Device: "samsung tv", Command: "POWER_TOGGLE", Port: "2", Repeat: 2})
	if err != nil {
		t.Fatalf("SendIR() error = %v", err)
	}
	if res.Target != "dock1" || res.Calls != 2 {
		t.Errorf("result = %+v", res)
	}
	body := decodeBody(t, f.Calls()[0])
	if body["codeset_id"] != "uc_samsung" || body["cmd_id"] != "POWER_TOGGLE" || body["port_id"] != "2" {
		t.Errorf("body = %v", body)
	}

	res, err = d.SendIR(context.Background(), IR{Device: "rem.tv", Command: "MUTE", Dock: "Bedroom Dock"})
	if err != nil || res.Target != "dock2" {
		t.Errorf("SendIR(dock2) = %+v, %v", res, err)
	}
	if body := decodeBody(t, f.Calls()[2]); body["port_id"] != nil {
		t.Errorf("port_id sent without Port: %v", body)
	}
}

func TestDispatcher_SendIRCode(t *testing.T) {
	f := hubtest.New()
	f.OK(http.MethodPut, "ir/emitters/dock1/send")
	f.OK(http.MethodPut, "ir/emitters/dock2/send")
	d, _, _ := newTestDispatcher(t, f)

	res, err := d.SendIRCode(context.Background(), IRCode{Code: " 0xE0E040BF ", Port: "1", Repeat: 3})
	if err != nil {
		t.Fatalf("SendIRCode() error = %v", err)
	}
	if res.Kind != KindIR || res.Target != "dock1" || res.Calls != 3 {
		t.Errorf("result = %+v", res)
	}
	body := decodeBody(t, f.Calls()[0])
	if body["code"] != "0xE0E040BF" || body["format"] != "HEX" || body["port_id"] != "1" {
		t.Errorf("body = %v", body)
	}
	if _, ok := body["codeset_id"]; ok {
		t.Errorf("raw code sent with codeset_id: %v", body)
	}

	res, err = d.SendIRCode(context.Background(), IRCode{Code: "0000 006C 0022", Format: "pronto", Dock: "bedroom dock"})
	if err != nil || res.Target != "dock2" {
		t.Fatalf("SendIRCode(dock2) = %+v, %v", res, err)
	}
	if body := decodeBody(t, f.Calls()[3]); body["format"] != "PRONTO" {
		t.Errorf("body = %v", body)
	}
}

func setHubStatus(t *testing.T, m *model.Model, h model.HubStatus) {
	t.Helper()
	if _, err := m.Apply(m.BeginRefresh(), model.Update{Hub: &h}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
}

func TestDispatcher_StartFirmwareUpdate(t *testing.T) {
	tests := []struct {
		name      string
		status    model.HubStatus
		wantErr   error
		wantOut   Outcome
		wantCalls int
	}{
		{
			name:      "newer version available",
			status:    model.HubStatus{FirmwareVersion: "1.9.3", LatestVersion: "2.0.1"},
			wantOut:   OutcomeSent,
			wantCalls: 1,
		},
		{
			name:    "already running",
			status:  model.HubStatus{FirmwareVersion: "1.9.3", LatestVersion: "2.0.1", UpdateInProgress: true},
			wantOut: OutcomeAlreadyInState,
		},
		{
			name:    "up to date",
			status:  model.HubStatus{FirmwareVersion: "2.0.1", LatestVersion: "2.0.1"},
			wantErr: hub.ErrNotFound,
		},
		{
			name:    "nothing advertised",
			status:  model.HubStatus{FirmwareVersion: "2.0.1"},
			wantErr: hub.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := hubtest.New()
			f.JSON(http.MethodPost, "system/update/latest", `{"state":"START"}`)
			d, m, _ := newTestDispatcher(t, f)
			setHubStatus(t, m, tt.status)

			res, err := d.StartFirmwareUpdate(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("StartFirmwareUpdate() error = %v", err)
			} else if res.Outcome != tt.wantOut || res.Kind != KindFirmware {
				t.Errorf("result = %+v", res)
			}
			if got := f.Count(http.MethodPost, "system/update/latest"); got != tt.wantCalls {
				t.Errorf("requests = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestDispatcher_StartFirmwareUpdateRejected(t *testing.T) {
	f := hubtest.New()
	f.Status(http.MethodPost, "system/update/latest", http.StatusServiceUnavailable)
	d, m, _ := newTestDispatcher(t, f)
	setHubStatus(t, m, model.HubStatus{FirmwareVersion: "1.9.3", LatestVersion: "2.0.1"})

	res, err := d.StartFirmwareUpdate(context.Background())
	if !errors.Is(err, hub.ErrCommandFailed) {
		t.Fatalf("error = %v, want ErrCommandFailed", err)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
}

func TestDispatcher_SendSystem(t *testing.T) {
	f := hubtest.New()
	f.OK(http.MethodPost, "system")
	d, _, _ := newTestDispatcher(t, f)

	for _, cmd := range hub.SystemCommands {
		if _, err := d.SendSystem(context.Background(), string(cmd)); err != nil {
			t.Errorf("SendSystem(%s) error = %v", cmd, err)
		}
	}
	calls := f.Calls()
	if len(calls) != len(hub.SystemCommands) {
		t.Fatalf("requests = %d", len(calls))
	}
	if got := calls[2].Query.Get("cmd"); got != "POWER_OFF" {
		t.Errorf("cmd = %q, want POWER_OFF", got)
	}

	if _, err := d.SendSystem(context.Background(), "restart_ui"); err != nil {
		t.Errorf("lower case name rejected: %v", err)
	}
}

func TestDispatcher_SetDockCharging(t *testing.T) {
	f := hubtest.New()
	f.OK(http.MethodPatch, "docks/devices/dock1")
	d, _, _ := newTestDispatcher(t, f)

	if _, err := d.SetDockCharging(context.Background(), "living dock", false); err != nil {
		t.Fatalf("SetDockCharging() error = %v", err)
	}
	if body := decodeBody(t, f.Calls()[0]); body["wireless_charging"] != false {
		t.Errorf("body = %v", body)
	}

	_, err := d.SetDockCharging(context.Background(), "dock2", true)
	if !errors.Is(err, hub.ErrCommandFailed) {
		t.Errorf("error = %v, want ErrCommandFailed", err)
	}
	if f.Total() != 1 {
		t.Errorf("requests = %d, want 1", f.Total())
	}
}

func TestDispatcher_Retry(t *testing.T) {
	flaky := func(failures int, status int) hubtest.Route {
		return func(req hub.Request, n int) (*hub.Response, error) {
			if n <= failures {
				if status == 0 {
					return nil, &hub.Fault{Kind: hub.FaultUnreachable, Method: req.Method, Path: req.Path}
				}
				return nil, hubtest.HTTPFault(req, status)
			}
			return &hub.Response{StatusCode: http.StatusOK}, nil
		}
	}

	tests := []struct {
		name         string
		route        hubtest.Route
		wantErr      error
		wantAttempts int
	}{
		{"recovers after network errors", flaky(2, 0), nil, 3},
		{"gives up after max attempts", flaky(10, 0), hub.ErrUnreachable, 4},
		{"500 not retried", flaky(10, http.StatusInternalServerError), hub.ErrCommandFailed, 1},
		{"503 not retried", flaky(10, http.StatusServiceUnavailable), hub.ErrCommandFailed, 1},
		{"429 not retried", flaky(10, http.StatusTooManyRequests), hub.ErrCommandFailed, 1},
		{"408 not retried", flaky(10, http.StatusRequestTimeout), hub.ErrCommandFailed, 1},
		{"auth not retried", flaky(10, http.StatusUnauthorized), hub.ErrAuthInvalid, 1},
		{"forbidden not retried", flaky(10, http.StatusForbidden), hub.ErrAuthInvalid, 1},
		{"command failure not retried", flaky(10, http.StatusConflict), hub.ErrCommandFailed, 1},
		{"404 not retried", flaky(10, http.StatusNotFound), hub.ErrCommandFailed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := hubtest.New()
			f.Handle(http.MethodPost, "system", tt.route)
			d, _, obs := newTestDispatcher(t, f)

			res, err := d.SendSystem(context.Background(), "STANDBY")
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("error = %v", err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if res.Attempts != tt.wantAttempts || f.Total() != tt.wantAttempts {
				t.Errorf("attempts = %d, requests = %d, want %d", res.Attempts, f.Total(), tt.wantAttempts)
			}
			if len(obs.codes) != 1 || obs.codes[0] != hub.ErrorCode(err) {
				t.Errorf("observer codes = %v", obs.codes)
			}
		})
	}
}

func TestDispatcher_ServerErrorNotResent(t *testing.T) {
	f := hubtest.New()
	f.Status(http.MethodPost, "system", http.StatusInternalServerError)
	d, _, _ := newTestDispatcher(t, f)

	res, err := d.SendSystem(context.Background(), "REBOOT")
	if !errors.Is(err, hub.ErrCommandFailed) {
		t.Fatalf("error = %v, want ErrCommandFailed", err)
	}
	if errors.Is(err, hub.ErrUnreachable) {
		t.Errorf("error = %v, must not match ErrUnreachable", err)
	}
	if fault, ok := hub.AsFault(err); !ok || fault.StatusCode != http.StatusInternalServerError {
		t.Errorf("cause = %v, want the 500 fault", err)
	}
	if res.Attempts != 1 || f.Total() != 1 {
		t.Errorf("attempts = %d, requests = %d, want 1", res.Attempts, f.Total())
	}
}

func TestDispatcher_DeadlineDuringBackoff(t *testing.T) {
	f := hubtest.New()
	f.Unreachable(http.MethodPost, "system")

	m := newTestModel(t)
	cfg := fastConfig()
	cfg.MaxAttempts = 10
	cfg.InitialBackoff = time.Second
	cfg.MaxBackoff = time.Second
	d := New(hub.NewAPI(f), m, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := d.SendSystem(ctx, "REBOOT")
	if !errors.Is(err, hub.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("retry wait ignored the deadline")
	}
	if f.Total() != 1 {
		t.Errorf("requests = %d, want 1", f.Total())
	}
}

func TestDispatcher_ExpiredContext(t *testing.T) {
	f := hubtest.New()
	f.OK(http.MethodPost, "system")
	d, _, _ := newTestDispatcher(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := d.SendSystem(ctx, "STANDBY"); !errors.Is(err, hub.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
	if f.Total() != 0 {
		t.Errorf("requests = %d, want 0", f.Total())
	}
}

func TestConfig_WithDefaults(t *testing.T) {
	got := Config{InitialBackoff: 5 * time.Second}.withDefaults()
	if got.MaxAttempts != 4 || got.Multiplier != 2 || got.MaxBackoff != 5*time.Second {
		t.Errorf("withDefaults() = %+v", got)
	}
	if got := (Config{}).withDefaults(); got != DefaultConfig() {
		t.Errorf("zero config = %+v, want defaults", got)
	}
}

func TestOutcome_String(t *testing.T) {
	if OutcomeSent.String() != "sent" || OutcomeAlreadyInState.String() != "already_in_state" {
		t.Error("unexpected outcome names")
	}
	if b, _ := OutcomeSent.MarshalText(); string(b) != "sent" {
		t.Errorf("MarshalText() = %s", b)
	}
}

func TestObservers_FanOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	obs := Observers(a, nil, b)
	obs.ObserveDispatch(KindSystem, "timeout", 2, time.Second)

	for i, o := range []*recordingObserver{a, b} {
		if len(o.codes) != 1 || o.codes[0] != "timeout" {
			t.Errorf("observer %d codes = %v", i, o.codes)
		}
	}
}
