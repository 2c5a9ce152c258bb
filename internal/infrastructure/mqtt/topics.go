package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic published or consumed by UC Remote Core.
const TopicPrefix = "ucremote"

// Topics builds topic names for one hub. The hub segment is derived from
// the hub identifier with TopicSegment so that base URLs and model names
// can be used directly.
//
//	t := mqtt.NewTopics("remote-two")
//	t.Activity("uc.main.1") // ucremote/state/remote-two/activity/uc.main.1
type Topics struct {
	hub string
}

// NewTopics returns topic builders scoped to hubID.
func NewTopics(hubID string) Topics {
	return Topics{hub: TopicSegment(hubID)}
}

// Hub returns the sanitised hub segment used in every topic.
func (t Topics) Hub() string {
	return t.hub
}

// HubState is the retained hub status topic (battery, memory, firmware).
//
// Example: ucremote/state/remote-two/hub
func (t Topics) HubState() string {
	return fmt.Sprintf("%s/state/%s/hub", TopicPrefix, t.hub)
}

// Activity is the retained per-activity state topic.
//
// Example: ucremote/state/remote-two/activity/uc.main.1
func (t Topics) Activity(activityID string) string {
	return fmt.Sprintf("%s/state/%s/activity/%s", TopicPrefix, t.hub, TopicSegment(activityID))
}

// Dock is the retained per-dock state topic.
//
// Example: ucremote/state/remote-two/dock/uc-dock-1
func (t Topics) Dock(dockID string) string {
	return fmt.Sprintf("%s/state/%s/dock/%s", TopicPrefix, t.hub, TopicSegment(dockID))
}

// Command is the topic the bridge subscribes to for inbound commands.
//
// Example: ucremote/command/remote-two
func (t Topics) Command() string {
	return fmt.Sprintf("%s/command/%s", TopicPrefix, t.hub)
}

// Ack is the topic command results are published to.
//
// Example: ucremote/ack/remote-two
func (t Topics) Ack() string {
	return fmt.Sprintf("%s/ack/%s", TopicPrefix, t.hub)
}

// Health is the retained bridge health topic.
//
// Example: ucremote/health/remote-two
func (t Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, t.hub)
}

// AllState matches every retained state topic for the hub.
//
// Pattern: ucremote/state/remote-two/#
func (t Topics) AllState() string {
	return fmt.Sprintf("%s/state/%s/#", TopicPrefix, t.hub)
}

// SystemStatus is the process status topic carrying the Last Will.
//
// Example: ucremote/system/status
func SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// TopicSegment turns an arbitrary identifier into a single topic level.
// Wildcards, separators and whitespace are replaced with '-', a URL scheme
// and "/api" suffix are stripped, and the result is lowercased.
func TopicSegment(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), "/api")

	var b strings.Builder
	b.Grow(len(s))
	lastDash := false
	for _, r := range s {
		switch r {
		case '/', '+', '#', ':', ' ', '\t', '\n', '\x00':
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		default:
			b.WriteRune(r)
			lastDash = false
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "unknown"
	}
	return out
}
