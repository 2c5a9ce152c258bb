package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/wol"
)

// errNoMAC is returned when wake cannot find a MAC address anywhere.
var errNoMAC = errors.New("no MAC address: pass --mac, set remote.mac_address, or run once while the hub is awake")

func newWakeCmd(a *app) *cobra.Command {
	var (
		mac     string
		address string
		port    int
	)
	cmd := &cobra.Command{
		Use:   "wake",
		Short: "Send a Wake-on-LAN packet to a sleeping hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			if mac == "" {
				mac = a.cfg.Remote.MACAddress
			}
			if mac == "" {
				// An awake hub reports its own MAC.
				s, err := a.loadSession(ctx)
				if err != nil {
					return fmt.Errorf("%w: %w", errNoMAC, err)
				}
				if h, ok := s.Hub(); ok {
					mac = h.MACAddress
				}
			}
			if mac == "" {
				return errNoMAC
			}

			if _, err := wol.MagicPacket(mac); err != nil {
				return err
			}
			if err := wol.Wake(ctx, mac, wol.Target{Address: address, Port: port}); err != nil {
				return err
			}

			mac = wol.NormalizeMAC(mac)
			return a.render(map[string]string{"mac": mac, "result": "sent"}, func() *table {
				return pairs("mac", mac, "result", "sent")
			})
		},
	}
	cmd.Flags().StringVar(&mac, "mac", "", "hub MAC address (default from config)")
	cmd.Flags().StringVar(&address, "address", "", "broadcast address (default 255.255.255.255)")
	cmd.Flags().IntVar(&port, "port", wol.DefaultPort, "UDP port")
	return cmd
}
