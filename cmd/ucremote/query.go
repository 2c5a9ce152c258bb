package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/model"
)

func newCanConnectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "can-connect",
		Short: "Check that the hub answers with the configured API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			err = s.CanConnect(ctx)

			out := map[string]string{"hub": s.BaseURL(), "result": hub.ErrorCode(err)}
			if rerr := a.render(out, func() *table {
				return pairs("hub", s.BaseURL(), "result", hub.ErrorCode(err))
			}); rerr != nil {
				return rerr
			}
			return err
		},
	}
}

// withSnapshot loads the hub state and passes a snapshot to fn.
func (a *app) withSnapshot(cmd *cobra.Command, fn func(model.Snapshot) error) error {
	ctx, cancel := a.commandContext(cmd.Context())
	defer cancel()

	s, err := a.loadSession(ctx)
	if err != nil {
		return err
	}
	return fn(s.Snapshot())
}

// hubStatus returns the hub section or a protocol error when the hub did
// not report one.
func hubStatus(snap model.Snapshot) (model.HubStatus, error) {
	if snap.Hub == nil {
		return model.HubStatus{}, fmt.Errorf("%w: hub reported no device information", hub.ErrProtocol)
	}
	return *snap.Hub, nil
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show hub identity and firmware",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshot(cmd, func(snap model.Snapshot) error {
				h, err := hubStatus(snap)
				if err != nil {
					return err
				}
				return a.render(h, func() *table {
					return pairs(
						"name", h.Name,
						"model", h.ModelName,
						"model_number", h.ModelNumber,
						"serial", h.SerialNumber,
						"hw_revision", h.HWRevision,
						"firmware", h.FirmwareVersion,
						"latest_firmware", h.LatestVersion,
						"update_available", h.UpdateAvailable(),
						"api_version", h.APIVersion,
						"hostname", h.Hostname,
						"address", h.Address,
						"mac", h.MACAddress,
					)
				})
			})
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show hub power, resource usage and running activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshot(cmd, func(snap model.Snapshot) error {
				h, err := hubStatus(snap)
				if err != nil {
					return err
				}

				var active []string
				for _, act := range snap.Activities {
					if act.State == model.StateOn {
						active = append(active, act.Name)
					}
				}

				out := struct {
					model.HubStatus
					ActiveActivities []string `json:"active_activities"`
				}{h, active}

				return a.render(out, func() *table {
					return pairs(
						"name", h.Name,
						"power_mode", h.PowerMode,
						"battery", fmt.Sprintf("%d%%", h.BatteryLevel),
						"charging", h.Charging,
						"memory", fmt.Sprintf("%.0f / %.0f MB free", h.MemoryAvailableMB, h.MemoryTotalMB),
						"storage", fmt.Sprintf("%.0f / %.0f MB free", h.StorageAvailableMB, h.StorageTotalMB),
						"load", fmt.Sprintf("%.2f %.2f %.2f", h.LoadOne, h.LoadFive, h.LoadFifteen),
						"active_activities", active,
					)
				})
			})
		},
	}
}

func newBatteryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "battery",
		Short: "Show battery level and charging state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshot(cmd, func(snap model.Snapshot) error {
				h, err := hubStatus(snap)
				if err != nil {
					return err
				}
				out := map[string]any{
					"level":    h.BatteryLevel,
					"status":   h.BatteryStatus,
					"charging": h.Charging,
				}
				return a.render(out, func() *table {
					return pairs(
						"level", fmt.Sprintf("%d%%", h.BatteryLevel),
						"status", h.BatteryStatus,
						"charging", h.Charging,
					)
				})
			})
		},
	}
}

func newActivitiesCmd(a *app) *cobra.Command {
	var state string
	cmd := &cobra.Command{
		Use:   "activities",
		Short: "List activities and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshot(cmd, func(snap model.Snapshot) error {
				acts := make([]model.ActivityView, 0, len(snap.Activities))
				for _, act := range snap.Activities {
					if state == "" || strings.EqualFold(string(act.State), state) {
						acts = append(acts, act)
					}
				}
				return a.render(acts, func() *table {
					t := newTable("ID", "NAME", "STATE", "TARGET", "ENTITIES")
					for _, act := range acts {
						t.add(act.ID, act.Name, string(act.State), string(act.Target), len(act.EntityIDs))
					}
					return t
				})
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "only activities in this state (on, off, transitioning)")
	return cmd
}

func newEntitiesCmd(a *app) *cobra.Command {
	var activity string
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "List entities referenced by activities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshot(cmd, func(snap model.Snapshot) error {
				ents := make([]model.EntityView, 0, len(snap.Entities))
				for _, e := range snap.Entities {
					if activity == "" || e.ParentActivityID == activity {
						ents = append(ents, e)
					}
				}
				return a.render(ents, func() *table {
					t := newTable("ID", "NAME", "TYPE", "ACTIVITY")
					for _, e := range ents {
						t.add(e.ID, e.Name, e.Type, e.ParentActivityID)
					}
					return t
				})
			})
		},
	}
	cmd.Flags().StringVar(&activity, "activity", "", "only entities of this activity id")
	return cmd
}

func newDocksCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "docks",
		Short: "List docks and their IR ports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshot(cmd, func(snap model.Snapshot) error {
				return a.render(snap.Docks, func() *table {
					t := newTable("ID", "NAME", "MODEL", "REACHABLE", "PORTS", "CHARGING")
					for _, d := range snap.Docks {
						ports := make([]string, 0, len(d.Ports))
						for _, p := range d.Ports {
							ports = append(ports, p.ID)
						}
						charging := "n/a"
						if d.ChargingCapable {
							charging = cell(d.ChargingEnabled)
						}
						t.add(d.ID, d.Name, d.Model, d.Reachable, ports, charging)
					}
					return t
				})
			})
		},
	}
}

func newIRDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ir-devices",
		Short: "List IR remotes and their codesets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSnapshot(cmd, func(snap model.Snapshot) error {
				return a.render(snap.IRDevices, func() *table {
					t := newTable("ID", "NAME", "CODESET")
					for _, r := range snap.IRDevices {
						t.add(r.ID, r.Name, r.CodesetID)
					}
					return t
				})
			})
		},
	}
}

func newIntegrationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "integrations",
		Short: "List integration instances and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			s, err := a.openSession(ctx)
			if err != nil {
				return err
			}
			items, err := s.Integrations(ctx)
			if err != nil {
				return err
			}
			return a.render(items, func() *table {
				t := newTable("ID", "NAME", "DRIVER", "STATE", "ENABLED")
				for _, i := range items {
					t.add(i.IntegrationID, string(i.Name), i.DriverID, i.DeviceState, i.Enabled)
				}
				return t
			})
		},
	}
}
