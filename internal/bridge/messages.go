package bridge

import (
	"time"

	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// CommandMessage is received on ucremote/command/{hub}.
// Which fields are read depends on Command.
type CommandMessage struct {
	// ID correlates the ack. A missing id is replaced with a generated one.
	ID string `json:"id"`

	Timestamp time.Time `json:"timestamp"`

	// Command is a dispatch kind: button, ir, system, dock_charging,
	// activity_start or activity_stop.
	Command dispatch.Kind `json:"command"`

	Activity string `json:"activity,omitempty"`
	Button   string `json:"button,omitempty"`
	HoldMS   int    `json:"hold_ms,omitempty"`
	Repeat   int    `json:"repeat,omitempty"`

	Device string `json:"device,omitempty"`
	Code   string `json:"code,omitempty"`
	Dock   string `json:"dock,omitempty"`
	Port   string `json:"port,omitempty"`

	Enabled *bool `json:"enabled,omitempty"`

	System string `json:"system,omitempty"`

	// Source names the sender, for logs only.
	Source string `json:"source,omitempty"`
}

// AckStatus is the result of a command.
type AckStatus string

const (
	// AckAccepted means the hub accepted the command, or the activity was
	// already in the requested state.
	AckAccepted AckStatus = "accepted"

	// AckFailed means the command was not carried out.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on ucremote/ack/{hub} for every command.
type AckMessage struct {
	CommandID string        `json:"command_id"`
	Timestamp time.Time     `json:"timestamp"`
	Command   dispatch.Kind `json:"command,omitempty"`
	Status    AckStatus     `json:"status"`

	// Outcome is "sent" or "already_in_state" for accepted commands.
	Outcome string `json:"outcome,omitempty"`

	Target   string `json:"target,omitempty"`
	Attempts int    `json:"attempts"`

	Error *AckError `json:"error,omitempty"`
}

// AckError carries the failure classification.
type AckError struct {
	// Code is hub.ErrorCode of the failure, CodeInvalidRequest or CodeStopping.
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Ack codes raised by the bridge itself. Every other code is hub.ErrorCode.
const (
	CodeInvalidRequest = "invalid_request"
	CodeStopping       = "stopping"
)

func newAck(cmd CommandMessage, res dispatch.Result, err error, now time.Time) AckMessage {
	ack := AckMessage{
		CommandID: cmd.ID,
		Timestamp: now.UTC(),
		Command:   cmd.Command,
		Target:    res.Target,
		Attempts:  res.Attempts,
	}
	if err != nil {
		code, ok := localCode(err)
		if !ok {
			code = hub.ErrorCode(err)
		}
		ack.Status = AckFailed
		ack.Error = &AckError{Code: code, Message: err.Error()}
		return ack
	}
	ack.Status = AckAccepted
	ack.Outcome = res.Outcome.String()
	return ack
}

// HealthStatus is the operational status of the bridge.
type HealthStatus string

const (
	HealthStarting HealthStatus = "starting"
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on ucremote/health/{hub}.
type HealthMessage struct {
	Hub           string       `json:"hub"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Generation    uint64       `json:"generation"`
	LastRefresh   *time.Time   `json:"last_refresh,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}
