package hub

import (
	"fmt"
	"strings"
)

// SystemCommand is a hub power or restart action. The string values are
// the exact wire values.
type SystemCommand string

// System commands accepted by POST system?cmd=.
const (
	SystemStandby     SystemCommand = "STANDBY"
	SystemReboot      SystemCommand = "REBOOT"
	SystemPowerOff    SystemCommand = "POWER_OFF"
	SystemRestart     SystemCommand = "RESTART"
	SystemRestartUI   SystemCommand = "RESTART_UI"
	SystemRestartCore SystemCommand = "RESTART_CORE"
)

// SystemCommands lists every accepted command in documentation order.
var SystemCommands = []SystemCommand{
	SystemStandby,
	SystemReboot,
	SystemPowerOff,
	SystemRestart,
	SystemRestartUI,
	SystemRestartCore,
}

// ParseSystemCommand accepts a command name in any case.
// Unknown names match ErrNotFound.
func ParseSystemCommand(s string) (SystemCommand, error) {
	want := SystemCommand(strings.ToUpper(strings.TrimSpace(s)))
	for _, c := range SystemCommands {
		if c == want {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: system command %q", ErrNotFound, s)
}

// Activity command ids.
const (
	CmdActivityOn  = "activity.on"
	CmdActivityOff = "activity.off"
	CmdRemoteSend  = "remote.send_cmd"
)

// IRFormat is the encoding of a raw IR code.
type IRFormat string

// Raw IR code formats.
const (
	IRFormatHex    IRFormat = "HEX"
	IRFormatPronto IRFormat = "PRONTO"
)

// ParseIRFormat accepts a format name in any case. Unknown names match
// ErrNotFound.
func ParseIRFormat(s string) (IRFormat, error) {
	switch f := IRFormat(strings.ToUpper(strings.TrimSpace(s))); f {
	case IRFormatHex, IRFormatPronto:
		return f, nil
	}
	return "", fmt.Errorf("%w: ir format %q", ErrNotFound, s)
}
