package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/dispatch"
)

func newFirmwareCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "firmware <check|status|start>",
		Short:     "Check for, follow or start a firmware update",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"check", "status", "start"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch strings.ToLower(args[0]) {
			case "check":
				return a.firmwareCheck(cmd)
			case "status":
				return a.firmwareStatus(cmd)
			case "start":
				return a.withDispatcher(cmd, func(ctx context.Context, d *dispatch.Dispatcher) (dispatch.Result, error) {
					return d.StartFirmwareUpdate(ctx)
				})
			default:
				return fmt.Errorf("unknown firmware action %q (want check, status or start)", args[0])
			}
		},
	}
}

func (a *app) firmwareCheck(cmd *cobra.Command) error {
	ctx, cancel := a.commandContext(cmd.Context())
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	info, err := s.CheckForUpdate(ctx)
	if err != nil {
		return err
	}
	latest, ok := info.Latest()
	return a.render(info, func() *table {
		return pairs(
			"installed", info.InstalledVersion,
			"latest", latest.Version,
			"channel", latest.Channel,
			"update_available", ok,
			"update_in_progress", info.UpdateInProgress,
			"release_notes", latest.ReleaseNotesURL,
		)
	})
}

func (a *app) firmwareStatus(cmd *cobra.Command) error {
	ctx, cancel := a.commandContext(cmd.Context())
	defer cancel()

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	p, err := s.UpdateStatus(ctx)
	if err != nil {
		return err
	}
	return a.render(p, func() *table {
		return pairs(
			"state", p.State,
			"step_state", p.Progress.State,
			"step", fmt.Sprintf("%d/%d", p.Progress.CurrentStep, p.Progress.TotalSteps),
			"percent", p.Progress.CurrentPercent,
		)
	})
}
