package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/grandcat/zeroconf"
)

// Defaults for ZeroconfBrowser.
const (
	DefaultService = "_uc-remote._tcp"
	DefaultDomain  = "local."
)

// ZeroconfBrowser browses DNS-SD over multicast. A new resolver, and with
// it a new socket, is created for every Browse call and released when ctx
// is done.
type ZeroconfBrowser struct {
	Service string
	Domain  string
}

// NewZeroconfBrowser returns a browser for service in domain, using the
// defaults for empty arguments.
func NewZeroconfBrowser(service, domain string) *ZeroconfBrowser {
	if service == "" {
		service = DefaultService
	}
	if domain == "" {
		domain = DefaultDomain
	}
	return &ZeroconfBrowser{Service: service, Domain: domain}
}

// Browse implements Browser.
func (b *ZeroconfBrowser) Browse(ctx context.Context, found chan<- Advertisement) error {
	resolver, err := zeroconf.NewResolver()
	if err != nil {
		return fmt.Errorf("creating mDNS resolver: %w", err)
	}

	// The resolver closes entries only after it has shut down its sockets,
	// and its sends block, so entries is read until closed on every path.
	entries := make(chan *zeroconf.ServiceEntry)
	defer drainEntries(entries)

	if err := resolver.Browse(ctx, b.Service, b.Domain, entries); err != nil {
		return fmt.Errorf("browsing %s: %w", b.Service, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case entry, ok := <-entries:
			if !ok {
				return nil
			}
			ad, ok := advertisementFromEntry(entry)
			if !ok {
				continue
			}
			select {
			case found <- ad:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func drainEntries(entries <-chan *zeroconf.ServiceEntry) {
	for range entries { //nolint:revive // discard late answers
	}
}

func advertisementFromEntry(entry *zeroconf.ServiceEntry) (Advertisement, bool) {
	if entry == nil {
		return Advertisement{}, false
	}

	var address string
	switch {
	case len(entry.AddrIPv4) > 0:
		address = entry.AddrIPv4[0].String()
	case len(entry.AddrIPv6) > 0:
		address = entry.AddrIPv6[0].String()
	case entry.HostName != "":
		address = strings.TrimSuffix(entry.HostName, ".")
	default:
		return Advertisement{}, false
	}

	return Advertisement{
		Address:    address,
		Port:       entry.Port,
		Name:       entry.Instance,
		Attributes: parseTXT(entry.Text),
	}, true
}

// parseTXT turns ["name=Remote", "ver=2.0.1", "flag"] into a map.
// Keys are lower-cased; a bare key maps to "".
func parseTXT(records []string) map[string]string {
	attrs := make(map[string]string, len(records))
	for _, r := range records {
		key, value, _ := strings.Cut(r, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		attrs[key] = value
	}
	return attrs
}
