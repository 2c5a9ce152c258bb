package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nerrad567/uc-remote-core/internal/audit"
	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/uc-remote-core/internal/model"
	"github.com/nerrad567/uc-remote-core/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakeMQTT struct {
	mu        sync.Mutex
	connected bool
	messages  []published
	handlers  map[string]mqtt.MessageHandler
	failTopic string
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{connected: true, handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return mqtt.ErrNotConnected
	}
	if f.failTopic != "" && topic == f.failTopic {
		return mqtt.ErrPublishFailed
	}
	f.messages = append(f.messages, published{topic, append([]byte(nil), payload...), retained})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeMQTT) deliver(t *testing.T, topic string, payload string) {
	t.Helper()
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no handler for %s", topic)
	}
	_ = h(topic, []byte(payload))
}

func (f *fakeMQTT) on(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, m := range f.messages {
		if m.topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMQTT) reset() {
	f.mu.Lock()
	f.messages = nil
	f.mu.Unlock()
}

func (f *fakeMQTT) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeState struct {
	mu    sync.Mutex
	snap  model.Snapshot
	ready bool
	at    time.Time
}

func (s *fakeState) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeState) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *fakeState) LastRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.at
}

func (s *fakeState) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Generation
}

func (s *fakeState) set(fn func(*model.Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}

type call struct {
	method string
	args   string
}

type fakeCommander struct {
	mu    sync.Mutex
	calls []call
	res   dispatch.Result
	err   error
	after func(method string)
}

func (c *fakeCommander) record(method, args string, kind dispatch.Kind) (dispatch.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, call{method, args})
	res, err, after := c.res, c.err, c.after
	c.mu.Unlock()
	if after != nil {
		after(method)
	}
	res.Kind = kind
	return res, err
}

func (c *fakeCommander) PressButton(_ context.Context, b dispatch.Button) (dispatch.Result, error) {
	return c.record("PressButton", fmt.Sprintf("%s|%s|%v|%d", b.Name, b.Activity, b.Hold, b.Repeat), dispatch.KindButton)
}

func (c *fakeCommander) SendIR(_ context.Context, ir dispatch.IR) (dispatch.Result, error) {
	return c.record("SendIR", fmt.Sprintf("%s|%s|%s|%s|%d", ir.Device, ir.Command, ir.Dock, ir.Port, ir.Repeat), dispatch.KindIR)
}

func (c *fakeCommander) SendSystem(_ context.Context, name string) (dispatch.Result, error) {
	return c.record("SendSystem", name, dispatch.KindSystem)
}

func (c *fakeCommander) SetDockCharging(_ context.Context, dock string, enabled bool) (dispatch.Result, error) {
	return c.record("SetDockCharging", fmt.Sprintf("%s|%v", dock, enabled), dispatch.KindDockCharging)
}

func (c *fakeCommander) StartActivity(_ context.Context, ref string) (dispatch.Result, error) {
	return c.record("StartActivity", ref, dispatch.KindActivityStart)
}

func (c *fakeCommander) StopActivity(_ context.Context, ref string) (dispatch.Result, error) {
	return c.record("StopActivity", ref, dispatch.KindActivityStop)
}

func (c *fakeCommander) recorded() []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]call(nil), c.calls...)
}

type fakeTelemetry struct {
	mu       sync.Mutex
	samples  []influxdb.HubSample
	dispatch []string
}

func (f *fakeTelemetry) WriteHubStatus(s influxdb.HubSample) {
	f.mu.Lock()
	f.samples = append(f.samples, s)
	f.mu.Unlock()
}

func (f *fakeTelemetry) WriteDispatch(hubID, kind, result string, attempts int, _ time.Duration) {
	f.mu.Lock()
	f.dispatch = append(f.dispatch, fmt.Sprintf("%s/%s/%s/%d", hubID, kind, result, attempts))
	f.mu.Unlock()
}

func testSnapshot() model.Snapshot {
	return model.Snapshot{
		Generation: 1,
		Hub:        &model.HubStatus{Name: "Remote Two", BatteryLevel: 80, Charging: true, AmbientLight: 30, HasAmbientLight: true},
		Activities: []model.ActivityView{
			{ID: "act.tv", Name: "Watch TV", State: model.StateOn, EntityIDs: []string{}},
			{ID: "act.music", Name: "Music", State: model.StateOff, EntityIDs: []string{}},
		},
		Docks: []model.DockView{
			{ID: "dock1", Name: "Living Room", Reachable: true},
		},
	}
}

type fixture struct {
	bridge    *Bridge
	mqtt      *fakeMQTT
	state     *fakeState
	commands  *fakeCommander
	telemetry *fakeTelemetry
	audit     *fakeAudit
	topics    mqtt.Topics
}

// fakeAudit collects audit entries.
type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *fakeAudit) Create(_ context.Context, e *audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *e)
	return nil
}

func (a *fakeAudit) List(context.Context, audit.Filter) (*audit.ListResult, error) {
	return &audit.ListResult{}, nil
}

func (a *fakeAudit) recorded() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Entry(nil), a.entries...)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mqtt:      newFakeMQTT(),
		state:     &fakeState{snap: testSnapshot(), ready: true, at: time.Unix(1700000000, 0)},
		commands:  &fakeCommander{res: dispatch.Result{Outcome: dispatch.OutcomeSent, Target: "act.tv", Calls: 1, Attempts: 1}},
		telemetry: &fakeTelemetry{},
		audit:     &fakeAudit{},
	}
	b, err := New(Options{
		HubID:          "remote-two",
		MQTT:           f.mqtt,
		Commands:       f.commands,
		State:          f.state,
		Telemetry:      f.telemetry,
		Audit:          f.audit,
		Version:        "test",
		HealthInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.bridge = b
	f.topics = b.Topics()
	t.Cleanup(b.Stop)
	return f
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
}

func (f *fixture) acks(t *testing.T) []AckMessage {
	t.Helper()
	f.bridge.Wait()
	var out []AckMessage
	for _, m := range f.mqtt.on(f.topics.Ack()) {
		var ack AckMessage
		if err := json.Unmarshal(m.payload, &ack); err != nil {
			t.Fatalf("decode ack: %v", err)
		}
		if m.retained {
			t.Error("ack published retained")
		}
		out = append(out, ack)
	}
	return out
}

func lastHealth(t *testing.T, f *fixture) HealthMessage {
	t.Helper()
	msgs := f.mqtt.on(f.topics.Health())
	if len(msgs) == 0 {
		t.Fatal("no health published")
	}
	var h HealthMessage
	if err := json.Unmarshal(msgs[len(msgs)-1].payload, &h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return h
}

func TestNew_MissingDependencies(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{"no mqtt", Options{Commands: &fakeCommander{}, State: &fakeState{}}},
		{"no commander", Options{MQTT: newFakeMQTT(), State: &fakeState{}}},
		{"no state", Options{MQTT: newFakeMQTT(), Commands: &fakeCommander{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts); !errors.Is(err, ErrMissingDependency) {
				t.Errorf("New() error = %v, want ErrMissingDependency", err)
			}
		})
	}
}

func TestStart_SubscribesAndPublishesState(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	if _, ok := f.mqtt.handlers["ucremote/command/remote-two"]; !ok {
		t.Fatalf("command topic not subscribed: %v", f.mqtt.handlers)
	}

	hubMsgs := f.mqtt.on("ucremote/state/remote-two/hub")
	if len(hubMsgs) != 1 || !hubMsgs[0].retained {
		t.Fatalf("hub state = %+v", hubMsgs)
	}
	var hubState model.HubStatus
	if err := json.Unmarshal(hubMsgs[0].payload, &hubState); err != nil {
		t.Fatal(err)
	}
	if hubState.BatteryLevel != 80 || !hubState.Charging {
		t.Errorf("hub state = %+v", hubState)
	}

	var tv model.ActivityView
	msgs := f.mqtt.on("ucremote/state/remote-two/activity/act.tv")
	if len(msgs) != 1 {
		t.Fatalf("activity messages = %d", len(msgs))
	}
	if err := json.Unmarshal(msgs[0].payload, &tv); err != nil {
		t.Fatal(err)
	}
	if tv.State != model.StateOn || tv.Name != "Watch TV" {
		t.Errorf("activity = %+v", tv)
	}
	if len(f.mqtt.on("ucremote/state/remote-two/dock/dock1")) != 1 {
		t.Error("dock state not published")
	}

	health := f.mqtt.on(f.topics.Health())
	if len(health) < 2 {
		t.Fatalf("health messages = %d, want starting and healthy", len(health))
	}
	var first HealthMessage
	if err := json.Unmarshal(health[0].payload, &first); err != nil {
		t.Fatal(err)
	}
	if first.Status != HealthStarting {
		t.Errorf("first health = %s, want starting", first.Status)
	}
}

func TestPublishState_OnlyChanges(t *testing.T) {
	f := newFixture(t)
	f.bridge.PublishState()
	f.mqtt.reset()

	f.bridge.PublishState()
	if n := f.mqtt.count(); n != 0 {
		t.Fatalf("unchanged state republished %d messages", n)
	}

	f.state.set(func(s *model.Snapshot) {
		s.Activities[1].State = model.StateOn
	})
	f.bridge.PublishState()

	if got := f.mqtt.on("ucremote/state/remote-two/activity/act.music"); len(got) != 1 {
		t.Errorf("changed activity messages = %d, want 1", len(got))
	}
	if n := f.mqtt.count(); n != 1 {
		t.Errorf("published %d messages, want only the changed activity", n)
	}
}

func TestPublishState_ClearsRemovedObjects(t *testing.T) {
	f := newFixture(t)
	f.bridge.PublishState()
	f.mqtt.reset()

	f.state.set(func(s *model.Snapshot) {
		s.Activities = s.Activities[:1]
		s.Docks = nil
	})
	f.bridge.PublishState()

	for _, topic := range []string{
		"ucremote/state/remote-two/activity/act.music",
		"ucremote/state/remote-two/dock/dock1",
	} {
		msgs := f.mqtt.on(topic)
		if len(msgs) != 1 || len(msgs[0].payload) != 0 || !msgs[0].retained {
			t.Errorf("%s: %+v, want one empty retained message", topic, msgs)
		}
	}

	f.mqtt.reset()
	f.bridge.PublishState()
	if n := f.mqtt.count(); n != 0 {
		t.Errorf("cleared topics published again: %d", n)
	}
}

func TestPublishState_RetriesFailedTopics(t *testing.T) {
	f := newFixture(t)
	f.mqtt.failTopic = "ucremote/state/remote-two/dock/dock1"
	f.bridge.PublishState()

	f.mqtt.failTopic = ""
	f.mqtt.reset()
	f.bridge.PublishState()

	if got := f.mqtt.on("ucremote/state/remote-two/dock/dock1"); len(got) != 1 {
		t.Errorf("failed topic not retried: %d", len(got))
	}
	if n := f.mqtt.count(); n != 1 {
		t.Errorf("published %d messages, want 1", n)
	}
}

func TestResync(t *testing.T) {
	f := newFixture(t)
	f.bridge.PublishState()
	f.mqtt.reset()

	f.bridge.Resync()
	if n := f.mqtt.count(); n != 4 {
		t.Errorf("Resync published %d messages, want 4", n)
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		method  string
		args    string
	}{
		{
			name:    "button",
			payload: `{"id":"c1","command":"button","button":"VOLUME_UP","activity":"Watch TV","hold_ms":1500,"repeat":2}`,
			method:  "PressButton",
			args:    "VOLUME_UP|Watch TV|1.5s|2",
		},
		{
			name:    "ir",
			payload: `{"id":"c2","command":"ir","device":"Samsung TV","code":"POWER_TOGGLE","dock":"Living Room","port":"2","repeat":1}`,
			method:  "SendIR",
			args:    "Samsung TV|POWER_TOGGLE|Living Room|2|1",
		},
		{
			name:    "system",
			payload: `{"id":"c3","command":"system","system":"STANDBY"}`,
			method:  "SendSystem",
			args:    "STANDBY",
		},
		{
			name:    "dock charging",
			payload: `{"id":"c4","command":"dock_charging","dock":"Living Room","enabled":false}`,
			method:  "SetDockCharging",
			args:    "Living Room|false",
		},
		{
			name:    "activity start",
			payload: `{"id":"c5","command":"activity_start","activity":"Music"}`,
			method:  "StartActivity",
			args:    "Music",
		},
		{
			name:    "activity stop",
			payload: `{"id":"c6","command":"activity_stop","activity":"act.tv"}`,
			method:  "StopActivity",
			args:    "act.tv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.start(t)
			f.mqtt.deliver(t, f.topics.Command(), tt.payload)

			acks := f.acks(t)
			calls := f.commands.recorded()
			if len(calls) != 1 || calls[0].method != tt.method || calls[0].args != tt.args {
				t.Fatalf("calls = %+v, want %s(%s)", calls, tt.method, tt.args)
			}
			if len(acks) != 1 {
				t.Fatalf("acks = %+v", acks)
			}
			ack := acks[0]
			if ack.Status != AckAccepted || ack.Outcome != "sent" || ack.Error != nil || ack.Attempts != 1 {
				t.Errorf("ack = %+v", ack)
			}
			if !strings.HasPrefix(ack.CommandID, "c") {
				t.Errorf("CommandID = %q", ack.CommandID)
			}
		})
	}
}

func TestCommands_Failures(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		err      error
		wantCode string
		wantCall bool
	}{
		{"malformed json", `{"id":`, nil, CodeInvalidRequest, false},
		{"unknown command", `{"id":"x","command":"reboot_everything"}`, nil, CodeInvalidRequest, false},
		{"charging without enabled", `{"id":"x","command":"dock_charging","dock":"d"}`, nil, CodeInvalidRequest, false},
		{"not found", `{"id":"x","command":"activity_start","activity":"nope"}`, fmt.Errorf("%w: activity", hub.ErrNotFound), "not_found", true},
		{"unreachable", `{"id":"x","command":"system","system":"STANDBY"}`, fmt.Errorf("%w: dial", hub.ErrUnreachable), "unreachable", true},
		{"timeout", `{"id":"x","command":"button","button":"HOME"}`, hub.ErrTimeout, "timeout", true},
		{"auth", `{"id":"x","command":"button","button":"HOME"}`, hub.ErrAuthInvalid, "auth_invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.commands.err = tt.err
			f.start(t)
			f.mqtt.deliver(t, f.topics.Command(), tt.payload)

			acks := f.acks(t)
			if len(acks) != 1 {
				t.Fatalf("acks = %+v", acks)
			}
			ack := acks[0]
			if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("ack = %+v, want code %s", ack, tt.wantCode)
			}
			if ack.CommandID == "" {
				t.Error("ack has no command id")
			}
			if called := len(f.commands.recorded()) > 0; called != tt.wantCall {
				t.Errorf("commander called = %v, want %v", called, tt.wantCall)
			}
		})
	}
}

func TestCommands_Audited(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.mqtt.deliver(t, f.topics.Command(), `{"id":"c1","command":"activity_start","activity":"Watch TV","source":"homeassistant"}`)
	f.acks(t)

	f.commands.mu.Lock()
	f.commands.err = fmt.Errorf("%w: dial", hub.ErrUnreachable)
	f.commands.mu.Unlock()
	f.mqtt.deliver(t, f.topics.Command(), `{"id":"c2","command":"system","system":"STANDBY"}`)
	f.acks(t)

	entries := f.audit.recorded()
	if len(entries) != 2 {
		t.Fatalf("entries = %+v, want 2", entries)
	}
	ok := entries[0]
	if ok.ID != "c1" || ok.Source != audit.SourceMQTT || ok.Subject != "homeassistant" ||
		ok.Kind != "activity_start" || ok.Result != "ok" || ok.Outcome != "sent" {
		t.Errorf("success entry = %+v", ok)
	}
	failed := entries[1]
	if failed.ID != "c2" || failed.Result != "unreachable" || failed.Details["error"] == nil {
		t.Errorf("failure entry = %+v", failed)
	}
}

func TestCommand_GeneratesMissingID(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.mqtt.deliver(t, f.topics.Command(), `{"command":"system","system":"STANDBY"}`)

	acks := f.acks(t)
	if len(acks) != 1 || len(acks[0].CommandID) != 36 {
		t.Fatalf("acks = %+v, want a generated uuid", acks)
	}
}

func TestActivityCommand_PublishesNewState(t *testing.T) {
	f := newFixture(t)
	f.commands.after = func(string) {
		f.state.set(func(s *model.Snapshot) {
			s.Activities[1].State = model.StateTransitioning
			s.Activities[1].Target = model.StateOn
		})
	}
	f.start(t)
	f.mqtt.reset()

	f.mqtt.deliver(t, f.topics.Command(), `{"id":"c1","command":"activity_start","activity":"Music"}`)
	f.bridge.Wait()

	msgs := f.mqtt.on("ucremote/state/remote-two/activity/act.music")
	if len(msgs) != 1 {
		t.Fatalf("activity messages = %d, want 1", len(msgs))
	}
	var v model.ActivityView
	if err := json.Unmarshal(msgs[0].payload, &v); err != nil {
		t.Fatal(err)
	}
	if v.State != model.StateTransitioning || v.Target != model.StateOn {
		t.Errorf("activity = %+v", v)
	}
}

func TestRefreshHook(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	hook := f.bridge.RefreshHook()

	at := time.Unix(1700000100, 0)
	f.state.set(func(s *model.Snapshot) {
		s.Generation = 2
		s.Hub.BatteryLevel = 75
	})
	hook(context.Background(), session.RefreshResult{Generation: 2, At: at})

	msgs := f.mqtt.on("ucremote/state/remote-two/hub")
	if len(msgs) != 2 {
		t.Fatalf("hub state messages = %d, want 2", len(msgs))
	}

	if len(f.telemetry.samples) != 1 {
		t.Fatalf("samples = %d, want 1", len(f.telemetry.samples))
	}
	s := f.telemetry.samples[0]
	if s.HubID != "remote-two" || s.BatteryLevel != 75 || !s.Charging || s.ActivitiesOn != 1 ||
		s.Generation != 2 || !s.At.Equal(at) || !s.HasAmbientLight || s.AmbientLight != 30 {
		t.Errorf("sample = %+v", s)
	}

	hook(context.Background(), session.RefreshResult{Err: fmt.Errorf("%w: refused", hub.ErrUnreachable)})
	h := lastHealth(t, f)
	if h.Status != HealthDegraded || h.Reason != "last refresh failed: unreachable" {
		t.Errorf("health = %+v", h)
	}
	if len(f.telemetry.samples) != 1 {
		t.Error("failed refresh wrote a sample")
	}

	hook(context.Background(), session.RefreshResult{Generation: 3, At: at})
	h = lastHealth(t, f)
	if h.Status != HealthHealthy || h.Generation != 2 || h.LastRefresh == nil {
		t.Errorf("health = %+v", h)
	}
}

func TestHealth_Degraded(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
		reason string
	}{
		{"not initialised", func(f *fixture) { f.state.ready = false }, "hub session not initialised"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)
			f.start(t)
			if err := f.bridge.health.PublishNow(); err != nil {
				t.Fatal(err)
			}
			h := lastHealth(t, f)
			if h.Status != HealthDegraded || h.Reason != tt.reason {
				t.Errorf("health = %+v", h)
			}
		})
	}

	t.Run("mqtt disconnected", func(t *testing.T) {
		h := NewHealthReporter(HealthReporterConfig{Publisher: newFakeMQTT(), State: &fakeState{ready: true}})
		h.cfg.Publisher.(*fakeMQTT).connected = false
		if status, reason := h.determineStatus(); status != HealthDegraded || reason != "MQTT disconnected" {
			t.Errorf("status = %s %q", status, reason)
		}
	})
}

func TestStop(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	f.bridge.Stop()

	if h := lastHealth(t, f); h.Status != HealthStopping {
		t.Errorf("final health = %s, want stopping", h.Status)
	}

	f.mqtt.deliver(t, f.topics.Command(), `{"id":"late","command":"system","system":"STANDBY"}`)
	acks := f.acks(t)
	if len(acks) != 1 || acks[0].Error == nil || acks[0].Error.Code != CodeStopping {
		t.Errorf("acks = %+v, want stopping", acks)
	}
	if len(f.commands.recorded()) != 0 {
		t.Error("command executed after Stop")
	}
	f.bridge.Stop()
}

func TestObserveDispatch(t *testing.T) {
	f := newFixture(t)
	var obs dispatch.Observer = f.bridge
	obs.ObserveDispatch(dispatch.KindIR, "ok", 2, time.Millisecond)

	if len(f.telemetry.dispatch) != 1 || f.telemetry.dispatch[0] != "remote-two/ir/ok/2" {
		t.Errorf("dispatch telemetry = %v", f.telemetry.dispatch)
	}

	noTelemetry, err := New(Options{MQTT: newFakeMQTT(), Commands: &fakeCommander{}, State: &fakeState{}})
	if err != nil {
		t.Fatal(err)
	}
	noTelemetry.ObserveDispatch(dispatch.KindIR, "ok", 1, 0)
	noTelemetry.Stop()
}

func TestTelemetryObserver(t *testing.T) {
	sink := &fakeTelemetry{}
	obs := TelemetryObserver("remote-one", sink)
	obs.ObserveDispatch(dispatch.KindSystem, "timeout", 4, time.Second)

	if len(sink.dispatch) != 1 || sink.dispatch[0] != "remote-one/system/timeout/4" {
		t.Errorf("dispatch telemetry = %v", sink.dispatch)
	}

	// A nil sink is ignored.
	TelemetryObserver("remote-one", nil).ObserveDispatch(dispatch.KindIR, "ok", 1, 0)
}
