package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/uc-remote-core/internal/audit"
	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/uc-remote-core/internal/model"
	"github.com/nerrad567/uc-remote-core/internal/session"
)

const (
	// defaultCommandTimeout bounds one command including dispatcher retries.
	defaultCommandTimeout = 30 * time.Second

	// auditWriteTimeout bounds one audit insert.
	auditWriteTimeout = 2 * time.Second

	stateQoS = 1
)

// MQTTClient is the broker surface the bridge needs. *mqtt.Client
// satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Commander executes commands. *dispatch.Dispatcher satisfies it.
type Commander interface {
	PressButton(ctx context.Context, b dispatch.Button) (dispatch.Result, error)
	SendIR(ctx context.Context, ir dispatch.IR) (dispatch.Result, error)
	SendSystem(ctx context.Context, name string) (dispatch.Result, error)
	SetDockCharging(ctx context.Context, dockRef string, enabled bool) (dispatch.Result, error)
	StartActivity(ctx context.Context, ref string) (dispatch.Result, error)
	StopActivity(ctx context.Context, ref string) (dispatch.Result, error)
}

// StateSource exposes the hub view. *session.Session satisfies it.
type StateSource interface {
	Snapshot() model.Snapshot
	Ready() bool
	LastRefresh() time.Time
	Generation() uint64
}

// Telemetry receives samples for long-term storage. *influxdb.Client
// satisfies it.
type Telemetry interface {
	WriteHubStatus(s influxdb.HubSample)
	WriteDispatch(hubID, kind, result string, attempts int, elapsed time.Duration)
}

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the dependencies of a Bridge.
type Options struct {
	// HubID names the hub in topics and telemetry tags.
	HubID string

	MQTT     MQTTClient
	Commands Commander
	State    StateSource

	// Telemetry is optional.
	Telemetry Telemetry

	// Audit, when set, records every executed command.
	Audit audit.Repository

	// Logger is optional.
	Logger Logger

	// Version is reported in health messages.
	Version string

	// HealthInterval defaults to 30 seconds.
	HealthInterval time.Duration

	// CommandTimeout defaults to 30 seconds.
	CommandTimeout time.Duration
}

// Bridge publishes hub state to MQTT and executes commands received from it.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	hubID     string
	topics    mqtt.Topics
	mqtt      MQTTClient
	commands  Commander
	state     StateSource
	telemetry Telemetry
	audit     audit.Repository
	logger    Logger
	health    *HealthReporter
	timeout   time.Duration
	now       func() time.Time

	// published maps retained state topics to the payload last sent.
	published map[string]string
	publishMu sync.Mutex

	wg        sync.WaitGroup
	stopMu    sync.Mutex
	stopped   bool
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// New creates a bridge. Call Start to subscribe and begin publishing.
func New(opts Options) (*Bridge, error) {
	switch {
	case opts.MQTT == nil:
		return nil, fmt.Errorf("%w: mqtt client", ErrMissingDependency)
	case opts.Commands == nil:
		return nil, fmt.Errorf("%w: commander", ErrMissingDependency)
	case opts.State == nil:
		return nil, fmt.Errorf("%w: state source", ErrMissingDependency)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		hubID:     opts.HubID,
		topics:    mqtt.NewTopics(opts.HubID),
		mqtt:      opts.MQTT,
		commands:  opts.Commands,
		state:     opts.State,
		telemetry: opts.Telemetry,
		audit:     opts.Audit,
		logger:    logger,
		timeout:   timeout,
		now:       time.Now,
		published: make(map[string]string),
		ctx:       ctx,
		ctxCancel: cancel,
	}
	b.health = NewHealthReporter(HealthReporterConfig{
		Hub:       b.topics.Hub(),
		Topic:     b.topics.Health(),
		Version:   opts.Version,
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTT,
		State:     opts.State,
		Logger:    logger,
	})
	return b, nil
}

// Topics returns the topic builders for this bridge's hub.
func (b *Bridge) Topics() mqtt.Topics {
	return b.topics
}

// Start subscribes to the command topic, starts health reporting and
// publishes the current state.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Warn("failed to publish starting status", "error", err)
	}

	topic := b.topics.Command()
	if err := b.mqtt.Subscribe(topic, 1, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", topic)

	b.health.Start(ctx)
	b.PublishState()

	b.logger.Info("bridge started", "hub", b.topics.Hub())
	return nil
}

// Stop cancels in-flight commands, waits for them to ack and publishes a
// stopping health status. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.stopMu.Lock()
		b.stopped = true
		b.stopMu.Unlock()

		b.ctxCancel()
		b.wg.Wait()
		b.health.Stop()
		b.logger.Info("bridge stopped", "hub", b.topics.Hub())
	})
}

// Wait blocks until every command received so far has been acked.
func (b *Bridge) Wait() {
	b.wg.Wait()
}

// RefreshHook returns a session hook that publishes state and telemetry
// after successful refreshes and degrades health after failed ones.
func (b *Bridge) RefreshHook() session.RefreshHook {
	return func(_ context.Context, r session.RefreshResult) {
		b.health.RecordRefresh(r.Err)
		if r.Err != nil {
			return
		}
		snap := b.PublishState()
		if b.telemetry != nil {
			b.telemetry.WriteHubStatus(sample(b.hubID, snap, r.At))
		}
	}
}

// ObserveDispatch implements dispatch.Observer by forwarding results to
// the telemetry sink.
func (b *Bridge) ObserveDispatch(kind dispatch.Kind, code string, attempts int, elapsed time.Duration) {
	telemetryObserver{hubID: b.hubID, sink: b.telemetry}.ObserveDispatch(kind, code, attempts, elapsed)
}

// TelemetryObserver returns a dispatch.Observer that writes every result
// to t. It lets the dispatcher be built before the bridge that consumes it.
func TelemetryObserver(hubID string, t Telemetry) dispatch.Observer {
	return telemetryObserver{hubID: hubID, sink: t}
}

type telemetryObserver struct {
	hubID string
	sink  Telemetry
}

func (o telemetryObserver) ObserveDispatch(kind dispatch.Kind, code string, attempts int, elapsed time.Duration) {
	if o.sink != nil {
		o.sink.WriteDispatch(o.hubID, string(kind), code, attempts, elapsed)
	}
}

// Resync forgets what was published and publishes the full state again.
// Use it after a broker reconnect.
func (b *Bridge) Resync() {
	b.publishMu.Lock()
	clear(b.published)
	b.publishMu.Unlock()
	b.PublishState()
}

// PublishState publishes retained state for the hub, every activity and
// every dock whose payload changed since the last call, and clears the
// topics of activities and docks that no longer exist. It returns the
// snapshot it published.
func (b *Bridge) PublishState() model.Snapshot {
	snap := b.state.Snapshot()

	next := make(map[string][]byte, len(snap.Activities)+len(snap.Docks)+1)
	if snap.Hub != nil {
		b.encode(next, b.topics.HubState(), snap.Hub)
	}
	for _, a := range snap.Activities {
		b.encode(next, b.topics.Activity(a.ID), a)
	}
	for _, d := range snap.Docks {
		b.encode(next, b.topics.Dock(d.ID), d)
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	for topic, payload := range next {
		if prev, ok := b.published[topic]; ok && prev == string(payload) {
			continue
		}
		if err := b.mqtt.Publish(topic, payload, stateQoS, true); err != nil {
			b.logger.Warn("failed to publish state", "topic", topic, "error", err)
			continue
		}
		b.published[topic] = string(payload)
	}

	hubTopic := b.topics.HubState()
	for topic := range b.published {
		if _, ok := next[topic]; ok || topic == hubTopic {
			continue
		}
		// An empty retained payload removes the retained message.
		if err := b.mqtt.Publish(topic, nil, stateQoS, true); err != nil {
			b.logger.Warn("failed to clear state", "topic", topic, "error", err)
			continue
		}
		delete(b.published, topic)
	}
	return snap
}

func (b *Bridge) encode(into map[string][]byte, topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("failed to encode state", "topic", topic, "error", err)
		return
	}
	into[topic] = payload
}

// handleCommand decodes a command and executes it on its own goroutine so
// that slow hub calls do not stall message delivery.
func (b *Bridge) handleCommand(_ string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		cmd.ID = uuid.NewString()
		b.publishAck(newAck(cmd, dispatch.Result{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err), b.now()))
		return fmt.Errorf("decode command: %w", err)
	}
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	b.stopMu.Lock()
	if b.stopped {
		b.stopMu.Unlock()
		b.publishAck(newAck(cmd, dispatch.Result{}, ErrStopping, b.now()))
		return nil
	}
	b.wg.Add(1)
	b.stopMu.Unlock()

	b.logger.Info("received command", "command_id", cmd.ID, "command", cmd.Command, "source", cmd.Source)

	go func() {
		defer b.wg.Done()
		b.execute(cmd)
	}()
	return nil
}

func (b *Bridge) execute(cmd CommandMessage) {
	ctx, cancel := context.WithTimeout(b.ctx, b.timeout)
	defer cancel()

	res, err := b.run(ctx, cmd)
	if err != nil {
		b.logger.Warn("command failed", "command_id", cmd.ID, "command", cmd.Command, "error", err)
	}
	b.publishAck(newAck(cmd, res, err, b.now()))
	b.record(cmd, res, err)

	if err == nil && (cmd.Command == dispatch.KindActivityStart || cmd.Command == dispatch.KindActivityStop || cmd.Command == dispatch.KindDockCharging) {
		b.PublishState()
	}
}

func (b *Bridge) run(ctx context.Context, cmd CommandMessage) (dispatch.Result, error) {
	switch cmd.Command {
	case dispatch.KindButton:
		return b.commands.PressButton(ctx, dispatch.Button{
			Name:     cmd.Button,
			Activity: cmd.Activity,
			Hold:     time.Duration(cmd.HoldMS) * time.Millisecond,
			Repeat:   cmd.Repeat,
		})
	case dispatch.KindIR:
		return b.commands.SendIR(ctx, dispatch.IR{
			Device:  cmd.Device,
			Command: cmd.Code,
			Dock:    cmd.Dock,
			Port:    cmd.Port,
			Repeat:  cmd.Repeat,
		})
	case dispatch.KindSystem:
		return b.commands.SendSystem(ctx, cmd.System)
	case dispatch.KindDockCharging:
		if cmd.Enabled == nil {
			return dispatch.Result{}, fmt.Errorf("%w: dock_charging requires enabled", ErrInvalidCommand)
		}
		return b.commands.SetDockCharging(ctx, cmd.Dock, *cmd.Enabled)
	case dispatch.KindActivityStart:
		return b.commands.StartActivity(ctx, cmd.Activity)
	case dispatch.KindActivityStop:
		return b.commands.StopActivity(ctx, cmd.Activity)
	default:
		return dispatch.Result{}, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, strings.TrimSpace(string(cmd.Command)))
	}
}

// record writes the command to the audit log, if one is configured.
func (b *Bridge) record(cmd CommandMessage, res dispatch.Result, err error) {
	if b.audit == nil {
		return
	}
	e := audit.NewEntry(audit.SourceMQTT, cmd.Source, cmd.Command, res, err)
	e.ID = cmd.ID
	e.CreatedAt = b.now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()
	if aerr := b.audit.Create(ctx, e); aerr != nil {
		b.logger.Warn("failed to record command", "command_id", cmd.ID, "error", aerr)
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to encode ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(), payload, 1, false); err != nil {
		b.logger.Warn("failed to publish ack", "command_id", ack.CommandID, "error", err)
	}
}

// localCode classifies errors raised by the bridge itself rather than the
// dispatcher.
func localCode(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrInvalidCommand):
		return CodeInvalidRequest, true
	case errors.Is(err, ErrStopping):
		return CodeStopping, true
	default:
		return "", false
	}
}

func sample(hubID string, snap model.Snapshot, at time.Time) influxdb.HubSample {
	s := influxdb.HubSample{HubID: hubID, At: at, Generation: snap.Generation}
	for _, a := range snap.Activities {
		if a.State == model.StateOn {
			s.ActivitiesOn++
		}
	}
	if h := snap.Hub; h != nil {
		s.BatteryLevel = h.BatteryLevel
		s.Charging = h.Charging
		s.MemoryTotalMB = h.MemoryTotalMB
		s.MemoryAvailableMB = h.MemoryAvailableMB
		s.StorageTotalMB = h.StorageTotalMB
		s.StorageAvailableMB = h.StorageAvailableMB
		s.LoadOne = h.LoadOne
		s.AmbientLight = h.AmbientLight
		s.HasAmbientLight = h.HasAmbientLight
	}
	return s
}
