// Package wol sends Wake-on-LAN magic packets, used to wake a hub that
// has gone to standby.
package wol

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// DefaultPort is the conventional WoL discard port.
const DefaultPort = 9

// macRepeats is how many times the MAC follows the sync stream.
const macRepeats = 16

// Target is where the packet is sent. The zero value broadcasts to
// 255.255.255.255 on DefaultPort.
type Target struct {
	Address string
	Port    int
}

func (t Target) addr() string {
	host := t.Address
	if host == "" {
		host = net.IPv4bcast.String()
	}
	port := t.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// NormalizeMAC lowercases a MAC and uses colons as separators.
func NormalizeMAC(mac string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(mac)), "-", ":")
}

// MagicPacket builds the 102-byte packet for mac: six 0xFF bytes followed
// by sixteen copies of the 6-byte hardware address.
func MagicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(NormalizeMAC(mac))
	if err != nil {
		return nil, fmt.Errorf("invalid MAC address %q: %w", mac, err)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("invalid MAC address %q: want 6 bytes, got %d", mac, len(hw))
	}

	packet := make([]byte, 0, 6+macRepeats*len(hw))
	packet = append(packet, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF)
	for range macRepeats {
		packet = append(packet, hw...)
	}
	return packet, nil
}

// Wake sends a magic packet for mac to target.
func Wake(ctx context.Context, mac string, target Target) error {
	packet, err := MagicPacket(mac)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", target.addr())
	if err != nil {
		return fmt.Errorf("dialing %s: %w", target.addr(), err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline) //nolint:errcheck // best effort
	}
	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("sending magic packet: %w", err)
	}
	return nil
}
