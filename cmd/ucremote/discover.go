package main

import (
	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/discovery"
)

func newDiscoverCmd(a *app) *cobra.Command {
	var service, domain string
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Find hubs on the local network via mDNS",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if service == "" {
				service = a.cfg.Discovery.Service
			}
			if domain == "" {
				domain = a.cfg.Discovery.Domain
			}
			candidates := a.discover(cmd, service, domain)
			return a.render(candidates, func() *table {
				t := newTable("NAME", "MODEL", "FIRMWARE", "URL")
				for _, c := range candidates {
					t.add(c.Name, c.Model, c.Firmware, c.BaseURL)
				}
				return t
			})
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "mDNS service type (default from config)")
	cmd.Flags().StringVar(&domain, "domain", "", "mDNS domain (default from config)")
	return cmd
}

// discover browses for the configured discovery timeout. An empty result
// is not an error.
func (a *app) discover(cmd *cobra.Command, service, domain string) []discovery.Candidate {
	l := discovery.NewListener(
		discovery.NewZeroconfBrowser(service, domain),
		discovery.WithTimeout(a.cfg.Discovery.Timeout),
		discovery.WithLogger(a.log.With("component", "discovery")),
	)
	return l.Discover(cmd.Context(), 0)
}
