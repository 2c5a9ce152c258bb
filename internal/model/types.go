package model

import "strings"

// ActivityState is the local state of an activity.
type ActivityState string

// Activity states.
const (
	StateOff           ActivityState = "OFF"
	StateOn            ActivityState = "ON"
	StateTransitioning ActivityState = "TRANSITIONING"
	StateUnknown       ActivityState = "UNKNOWN"
)

// ParseState maps a hub-reported activity state. RUNNING means the hub is
// still executing the on/off sequence.
func ParseState(wire string) ActivityState {
	switch strings.ToUpper(strings.TrimSpace(wire)) {
	case "ON":
		return StateOn
	case "OFF":
		return StateOff
	case "RUNNING", "TRANSITIONING":
		return StateTransitioning
	default:
		return StateUnknown
	}
}

// opposite returns OFF for ON and ON for OFF.
func opposite(s ActivityState) ActivityState {
	if s == StateOn {
		return StateOff
	}
	return StateOn
}

// HubStatus is the hub-level part of a refresh.
type HubStatus struct {
	Name         string `json:"name"`
	ModelName    string `json:"model_name"`
	ModelNumber  string `json:"model_number"`
	SerialNumber string `json:"serial_number"`
	HWRevision   string `json:"hw_revision"`

	FirmwareVersion  string `json:"firmware_version"`
	LatestVersion    string `json:"latest_version,omitempty"`
	ReleaseNotesURL  string `json:"release_notes_url,omitempty"`
	UpdateInProgress bool   `json:"update_in_progress"`
	AutomaticUpdates bool   `json:"automatic_updates"`

	BatteryLevel  int    `json:"battery_level"`
	BatteryStatus string `json:"battery_status"`
	Charging      bool   `json:"charging"`
	PowerMode     string `json:"power_mode,omitempty"`

	AmbientLight    float64 `json:"ambient_light"`
	HasAmbientLight bool    `json:"-"`

	Hostname   string `json:"hostname,omitempty"`
	Address    string `json:"address,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`
	APIVersion string `json:"api_version,omitempty"`

	MemoryTotalMB      float64 `json:"memory_total_mb"`
	MemoryAvailableMB  float64 `json:"memory_available_mb"`
	StorageTotalMB     float64 `json:"storage_total_mb"`
	StorageAvailableMB float64 `json:"storage_available_mb"`
	LoadOne            float64 `json:"load_one"`
	LoadFive           float64 `json:"load_five"`
	LoadFifteen        float64 `json:"load_fifteen"`
}

// UpdateAvailable reports whether a newer firmware was advertised.
func (h HubStatus) UpdateAvailable() bool {
	return h.LatestVersion != "" && h.LatestVersion != h.FirmwareVersion
}

// Update is one refresh result. A nil section was not fetched and is left
// untouched; a non-nil empty section means the hub reported none.
type Update struct {
	Hub        *HubStatus
	Activities []ActivityData
	Groups     []GroupData
	Entities   []EntityData
	Docks      []DockData
	IRDevices  []IRDeviceData
}

// ActivityData is the incoming record for one activity. A nil EntityIDs
// keeps the activity's current entity list.
type ActivityData struct {
	ID        string
	Name      string
	State     ActivityState
	EntityIDs []string
}

// GroupData is the incoming record for one activity group.
type GroupData struct {
	ID          string
	Name        string
	ActivityIDs []string
}

// EntityData is the incoming record for one entity.
type EntityData struct {
	ID         string
	Name       string
	Type       string
	Attributes map[string]any
}

// IRPort is one output of a dock's IR emitter.
type IRPort struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DockData is the incoming record for one dock.
type DockData struct {
	ID              string
	Name            string
	Model           string
	Ports           []IRPort
	ChargingCapable bool
	ChargingEnabled bool
	ChargingStatus  string
	Reachable       bool
}

// IRDeviceData is the incoming record for one IR remote entity.
type IRDeviceData struct {
	ID        string
	Name      string
	CodesetID string
}

// ActivityView is a value copy of an Activity.
type ActivityView struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	State     ActivityState `json:"state"`
	Target    ActivityState `json:"target,omitempty"`
	EntityIDs []string      `json:"entity_ids"`
	GroupIDs  []string      `json:"group_ids,omitempty"`
}

// GroupView is a value copy of an ActivityGroup.
type GroupView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ActivityIDs []string `json:"activity_ids"`
}

// EntityView is a value copy of an Entity.
type EntityView struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Type             string         `json:"type"`
	ParentActivityID string         `json:"parent_activity_id,omitempty"`
	Attributes       map[string]any `json:"attributes,omitempty"`
}

// DockView is a value copy of a Dock.
type DockView struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Model           string   `json:"model,omitempty"`
	Ports           []IRPort `json:"ports,omitempty"`
	ChargingCapable bool     `json:"charging_capable"`
	ChargingEnabled bool     `json:"charging_enabled"`
	ChargingStatus  string   `json:"charging_status,omitempty"`
	Reachable       bool     `json:"reachable"`
}

// IRDeviceView is a value copy of an IRDevice.
type IRDeviceView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CodesetID string `json:"codeset_id"`
}

// Snapshot is a consistent value copy of the whole model.
type Snapshot struct {
	Generation uint64         `json:"generation"`
	Hub        *HubStatus     `json:"hub,omitempty"`
	Activities []ActivityView `json:"activities"`
	Groups     []GroupView    `json:"groups"`
	Entities   []EntityView   `json:"entities"`
	Docks      []DockView     `json:"docks"`
	IRDevices  []IRDeviceView `json:"ir_devices"`
}
