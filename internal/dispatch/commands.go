package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/model"
)

// Button is a button press sent to an activity.
type Button struct {
	// Name is the button or simple command, for example "VOLUME_UP".
	Name string

	// Activity is an activity id or name. Empty selects the activity that
	// is currently on.
	Activity string

	// Hold, when positive, is sent as the hold duration of a single press.
	Hold time.Duration

	// Repeat is the number of presses; zero means one.
	Repeat int
}

// PressButton sends a button press to an activity.
func (d *Dispatcher) PressButton(ctx context.Context, b Button) (Result, error) {
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return d.fail(KindButton, notFound("button name is empty"))
	}

	activity, err := d.buttonTarget(b.Activity)
	if err != nil {
		return d.fail(KindButton, err)
	}

	params := map[string]any{"command": strings.ToUpper(name)}
	if b.Hold > 0 {
		params["hold"] = b.Hold.Milliseconds()
	}

	id := activity.ID()
	return d.run(ctx, KindButton, id, b.Repeat, func(ctx context.Context) error {
		return d.api.EntityCommand(ctx, id, hub.CmdRemoteSend, params)
	})
}

func (d *Dispatcher) buttonTarget(ref string) (*model.Activity, error) {
	if ref != "" {
		a, ok := d.model.FindActivity(ref)
		if !ok {
			return nil, notFound("activity %q", ref)
		}
		return a, nil
	}

	on := d.model.ActiveActivities()
	switch len(on) {
	case 0:
		return nil, notFound("no activity is on")
	case 1:
		return on[0], nil
	default:
		d.logger.Debug("several activities on, using the first", "activity", on[0].ID(), "count", len(on))
		return on[0], nil
	}
}

// IR is an IR code sent through a dock's emitter.
type IR struct {
	// Device is the IR remote name or id; it selects the codeset.
	Device string

	// Command is the codeset command id, for example "POWER_TOGGLE".
	Command string

	// Dock is a dock name or id. Empty selects the first reachable dock.
	Dock string

	// Port restricts output to one emitter port.
	Port string

	// Repeat is the number of sends; zero means one.
	Repeat int
}

// SendIR sends a predefined IR code.
func (d *Dispatcher) SendIR(ctx context.Context, ir IR) (Result, error) {
	if strings.TrimSpace(ir.Command) == "" {
		return d.fail(KindIR, notFound("ir command is empty"))
	}

	device, ok := d.model.FindIRDevice(ir.Device)
	if !ok {
		return d.fail(KindIR, notFound("ir device %q", ir.Device))
	}
	codeset := device.CodesetID()
	if codeset == "" {
		return d.fail(KindIR, notFound("ir device %q has no codeset", ir.Device))
	}

	dock, err := d.emitter(ir.Dock)
	if err != nil {
		return d.fail(KindIR, err)
	}
	if ir.Port != "" && !dock.HasPort(ir.Port) {
		return d.fail(KindIR, notFound("port %q on dock %q", ir.Port, dock.Name()))
	}

	body := hub.IRSend{CodesetID: codeset, CmdID: ir.Command, PortID: ir.Port}
	dockID := dock.ID()
	return d.run(ctx, KindIR, dockID, ir.Repeat, func(ctx context.Context) error {
		return d.api.SendIR(ctx, dockID, body)
	})
}

// IRCode is a raw IR code sent through a dock's emitter.
type IRCode struct {
	// Code is the encoded signal.
	Code string

	// Format is "hex" or "pronto", in any case. Empty means hex.
	Format string

	// Dock is a dock name or id. Empty selects the first reachable dock.
	Dock string

	// Port restricts output to one emitter port.
	Port string

	// Repeat is the number of sends; zero means one.
	Repeat int
}

// SendIRCode sends a raw IR code.
func (d *Dispatcher) SendIRCode(ctx context.Context, ir IRCode) (Result, error) {
	code := strings.TrimSpace(ir.Code)
	if code == "" {
		return d.fail(KindIR, notFound("ir code is empty"))
	}

	format := hub.IRFormatHex
	if ir.Format != "" {
		f, err := hub.ParseIRFormat(ir.Format)
		if err != nil {
			return d.fail(KindIR, err)
		}
		format = f
	}

	dock, err := d.emitter(ir.Dock)
	if err != nil {
		return d.fail(KindIR, err)
	}
	if ir.Port != "" && !dock.HasPort(ir.Port) {
		return d.fail(KindIR, notFound("port %q on dock %q", ir.Port, dock.Name()))
	}

	body := hub.IRSend{Code: code, Format: format, PortID: ir.Port}
	dockID := dock.ID()
	return d.run(ctx, KindIR, dockID, ir.Repeat, func(ctx context.Context) error {
		return d.api.SendIR(ctx, dockID, body)
	})
}

func (d *Dispatcher) emitter(ref string) (*model.Dock, error) {
	if ref != "" {
		dock, ok := d.model.FindDock(ref)
		if !ok {
			return nil, notFound("dock %q", ref)
		}
		return dock, nil
	}

	docks := d.model.Docks()
	for _, dock := range docks {
		if dock.Reachable() {
			return dock, nil
		}
	}
	if len(docks) > 0 {
		return docks[0], nil
	}
	return nil, notFound("no dock available")
}

// SendSystem issues a power or restart command. The name must be one of
// hub.SystemCommands, in any case.
func (d *Dispatcher) SendSystem(ctx context.Context, name string) (Result, error) {
	cmd, err := hub.ParseSystemCommand(name)
	if err != nil {
		return d.fail(KindSystem, err)
	}
	return d.run(ctx, KindSystem, string(cmd), 1, func(ctx context.Context) error {
		return d.api.SystemCommand(ctx, cmd)
	})
}

// SetDockCharging enables or disables wireless charging on a dock. Docks
// that do not advertise wireless charging fail with hub.ErrCommandFailed
// without a request.
func (d *Dispatcher) SetDockCharging(ctx context.Context, dockRef string, enabled bool) (Result, error) {
	dock, ok := d.model.FindDock(dockRef)
	if !ok {
		return d.fail(KindDockCharging, notFound("dock %q", dockRef))
	}
	if !dock.ChargingCapable() {
		return d.fail(KindDockCharging,
			fmt.Errorf("%w: dock %q does not support wireless charging", hub.ErrCommandFailed, dock.Name()))
	}

	id := dock.ID()
	return d.run(ctx, KindDockCharging, id, 1, func(ctx context.Context) error {
		return d.api.SetDockCharging(ctx, id, enabled)
	})
}

// StartFirmwareUpdate installs the latest firmware. It needs a refreshed
// hub status that reports a newer version; a running update is reported
// as OutcomeAlreadyInState without a request.
func (d *Dispatcher) StartFirmwareUpdate(ctx context.Context) (Result, error) {
	status, ok := d.model.Hub()
	if !ok {
		return d.fail(KindFirmware, notFound("hub status not loaded"))
	}
	if status.UpdateInProgress {
		d.logger.Debug("firmware update already running", "version", status.LatestVersion)
		d.observer.ObserveDispatch(KindFirmware, "ok", 0, 0)
		return Result{Kind: KindFirmware, Outcome: OutcomeAlreadyInState, Target: status.LatestVersion}, nil
	}
	if !status.UpdateAvailable() {
		return d.fail(KindFirmware, notFound("no firmware update available for %s", status.FirmwareVersion))
	}

	return d.run(ctx, KindFirmware, status.LatestVersion, 1, func(ctx context.Context) error {
		progress, err := d.api.StartUpdate(ctx)
		if err != nil {
			return err
		}
		d.logger.Debug("firmware update accepted", "state", progress.State)
		return nil
	})
}

// StartActivity turns an activity on.
func (d *Dispatcher) StartActivity(ctx context.Context, ref string) (Result, error) {
	return d.switchActivity(ctx, KindActivityStart, ref, model.StateOn, hub.CmdActivityOn)
}

// StopActivity turns an activity off.
func (d *Dispatcher) StopActivity(ctx context.Context, ref string) (Result, error) {
	return d.switchActivity(ctx, KindActivityStop, ref, model.StateOff, hub.CmdActivityOff)
}

func (d *Dispatcher) switchActivity(ctx context.Context, kind Kind, ref string, target model.ActivityState, cmdID string) (Result, error) {
	activity, ok := d.model.FindActivity(ref)
	if !ok {
		return d.fail(kind, notFound("activity %q", ref))
	}

	id := activity.ID()
	if pending, ok := activity.Target(); activity.State() == target || (ok && pending == target) {
		d.logger.Debug("activity already in requested state", "activity", id, "state", target)
		d.observer.ObserveDispatch(kind, "ok", 0, 0)
		return Result{Kind: kind, Outcome: OutcomeAlreadyInState, Target: id}, nil
	}

	res, err := d.run(ctx, kind, id, 1, func(ctx context.Context) error {
		return d.api.EntityCommand(ctx, id, cmdID, nil)
	})
	if err != nil {
		return res, err
	}

	if err := d.model.BeginTransition(id, target); err != nil {
		// Removed by a refresh while the command was in flight.
		d.logger.Debug("activity vanished before transition", "activity", id, "error", err)
	}
	return res, nil
}
