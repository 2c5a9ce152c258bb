package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/dispatch"
)

// withDispatcher loads the hub state, runs fn against a dispatcher and
// renders the result.
func (a *app) withDispatcher(cmd *cobra.Command, fn func(context.Context, *dispatch.Dispatcher) (dispatch.Result, error)) error {
	ctx, cancel := a.commandContext(cmd.Context())
	defer cancel()

	s, err := a.loadSession(ctx)
	if err != nil {
		return err
	}

	res, err := fn(ctx, a.newDispatcher(s))
	if err != nil {
		return err
	}
	return a.render(res, func() *table {
		return pairs(
			"kind", string(res.Kind),
			"target", res.Target,
			"outcome", res.Outcome.String(),
			"calls", res.Calls,
			"attempts", res.Attempts,
		)
	})
}

func newStartActivityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start-activity <activity>",
		Short: "Turn an activity on by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
				return d.StartActivity(ctx, args[0])
			})
		},
	}
}

func newStopActivityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop-activity <activity>",
		Short: "Turn an activity off by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
				return d.StopActivity(ctx, args[0])
			})
		},
	}
}

func newButtonCmd(a *app) *cobra.Command {
	var (
		activity string
		hold     time.Duration
		repeat   int
	)
	cmd := &cobra.Command{
		Use:   "button <name>",
		Short: "Press a button in an activity (default: the running one)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
				return d.PressButton(ctx, dispatch.Button{
					Name:     args[0],
					Activity: activity,
					Hold:     hold,
					Repeat:   repeat,
				})
			})
		},
	}
	cmd.Flags().StringVarP(&activity, "activity", "a", "", "activity id or name")
	cmd.Flags().DurationVar(&hold, "hold", 0, "hold duration of a single press")
	cmd.Flags().IntVarP(&repeat, "repeat", "r", 1, "number of presses")
	return cmd
}

func newIRCmd(a *app) *cobra.Command {
	var (
		dock   string
		port   string
		repeat int
	)
	cmd := &cobra.Command{
		Use:   "ir <device> <code>",
		Short: "Send a predefined IR code through a dock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
				return d.SendIR(ctx, dispatch.IR{
					Device:  args[0],
					Command: args[1],
					Dock:    dock,
					Port:    port,
					Repeat:  repeat,
				})
			})
		},
	}
	cmd.Flags().StringVarP(&dock, "dock", "d", "", "dock id or name (default: first reachable)")
	cmd.Flags().StringVar(&port, "port", "", "emitter port id")
	cmd.Flags().IntVarP(&repeat, "repeat", "r", 1, "number of sends")
	return cmd
}

func newIRCodeCmd(a *app) *cobra.Command {
	var (
		format string
		dock   string
		port   string
		repeat int
	)
	cmd := &cobra.Command{
		Use:   "ir-code <code>",
		Short: "Send a raw HEX or PRONTO IR code through a dock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
				return d.SendIRCode(ctx, dispatch.IRCode{
					Code:   args[0],
					Format: format,
					Dock:   dock,
					Port:   port,
					Repeat: repeat,
				})
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "hex", "code format: hex or pronto")
	cmd.Flags().StringVarP(&dock, "dock", "d", "", "dock id or name (default: first reachable)")
	cmd.Flags().StringVar(&port, "port", "", "emitter port id")
	cmd.Flags().IntVarP(&repeat, "repeat", "r", 1, "number of sends")
	return cmd
}

func newSystemCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "system <command>",
		Short:     "Send a system command (STANDBY, REBOOT, POWER_OFF, RESTART, RESTART_UI, RESTART_CORE)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"STANDBY", "REBOOT", "POWER_OFF", "RESTART", "RESTART_UI", "RESTART_CORE"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
				return d.SendSystem(ctx, args[0])
			})
		},
	}
}

func newDockChargingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dock-charging <dock> <on|off>",
		Short: "Enable or disable charging on a dock",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[1])
			if err != nil {
				return err
			}
			return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
				return d.SetDockCharging(ctx, args[0], enabled)
			})
		},
	}
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}
