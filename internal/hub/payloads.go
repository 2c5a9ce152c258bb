package hub

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Hub payloads differ between firmware generations. Each type here accepts
// the shapes known to exist and nothing else; decode failures surface as
// ErrProtocol instead of half-populated values.

var errShape = errors.New("unsupported shape")

// LocalizedText is a display string sent either as a plain string or as a
// language map such as {"en": "Watch TV", "de": "Fernsehen"}.
type LocalizedText string

// UnmarshalJSON accepts a string, a language map or null.
func (t *LocalizedText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = LocalizedText(s)
		return nil
	case len(data) > 0 && data[0] == '{':
		var m map[string]string
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("localized text: %w", err)
		}
		*t = LocalizedText(pickLanguage(m))
		return nil
	default:
		return fmt.Errorf("localized text: %w", errShape)
	}
}

// pickLanguage prefers English, then any en_* variant, then the first key
// in sorted order so the choice is stable.
func pickLanguage(m map[string]string) string {
	if v, ok := m["en"]; ok {
		return v
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(k, "en") {
			return m[k]
		}
	}
	if len(keys) > 0 {
		return m[keys[0]]
	}
	return ""
}

// FlexibleID is an identifier sent as either a string or a number.
type FlexibleID string

// UnmarshalJSON accepts a JSON string or number.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("identifier: %w", errShape)
	}
	*id = FlexibleID(n.String())
	return nil
}

// GroupMembers lists activity ids inside an activity group. Older
// firmware sends bare ids, newer firmware sends activity objects.
type GroupMembers []string

// UnmarshalJSON accepts ["id", ...] or [{"entity_id": "id"}, ...].
func (g *GroupMembers) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("group members: %w", errShape)
	}

	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		item = bytes.TrimSpace(item)
		if len(item) > 0 && item[0] == '"' {
			var id string
			if err := json.Unmarshal(item, &id); err != nil {
				return err
			}
			ids = append(ids, id)
			continue
		}

		var obj struct {
			EntityID   string `json:"entity_id"`
			ActivityID string `json:"activity_id"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("group member: %w", errShape)
		}
		switch {
		case obj.EntityID != "":
			ids = append(ids, obj.EntityID)
		case obj.ActivityID != "":
			ids = append(ids, obj.ActivityID)
		default:
			return fmt.Errorf("group member without id: %w", errShape)
		}
	}
	*g = ids
	return nil
}

// SystemInfo is GET system.
type SystemInfo struct {
	ModelName    string `json:"model_name"`
	ModelNumber  string `json:"model_number"`
	SerialNumber string `json:"serial_number"`
	HWRevision   string `json:"hw_revision"`
}

func (s *SystemInfo) validate() error {
	if s.ModelNumber == "" && s.ModelName == "" {
		return errors.New("system: missing model")
	}
	return nil
}

// HubConfig is the subset of GET cfg the engine reads.
type HubConfig struct {
	Device struct {
		Name string `json:"name"`
	} `json:"device"`
}

// BatteryInfo is GET system/power/battery.
type BatteryInfo struct {
	Capacity    *int   `json:"capacity"`
	Status      string `json:"status"`
	PowerSupply bool   `json:"power_supply"`
}

func (b *BatteryInfo) validate() error {
	if b.Capacity == nil {
		return errors.New("battery: missing capacity")
	}
	return nil
}

// PowerInfo is GET system/power.
type PowerInfo struct {
	PowerMode string `json:"power_mode"`
}

// AmbientLight is GET system/sensors/ambient_light.
type AmbientLight struct {
	Intensity *float64 `json:"intensity"`
}

func (a *AmbientLight) validate() error {
	if a.Intensity == nil {
		return errors.New("ambient light: missing intensity")
	}
	return nil
}

// AvailableUpdate is one entry of UpdateInfo.Available.
type AvailableUpdate struct {
	Channel         string `json:"channel"`
	Version         string `json:"version"`
	ReleaseNotesURL string `json:"release_notes_url"`
}

// UpdateInfo is GET system/update.
type UpdateInfo struct {
	InstalledVersion   string            `json:"installed_version"`
	UpdateInProgress   bool              `json:"update_in_progress"`
	NextCheckDate      string            `json:"next_check_date"`
	UpdateCheckEnabled bool              `json:"update_check_enabled"`
	Available          []AvailableUpdate `json:"available"`
}

func (u *UpdateInfo) validate() error {
	if u.InstalledVersion == "" {
		return errors.New("update: missing installed_version")
	}
	return nil
}

// Latest returns the newest STABLE or TESTING update that is newer than
// the installed version.
func (u *UpdateInfo) Latest() (AvailableUpdate, bool) {
	var best AvailableUpdate
	found := false
	for _, a := range u.Available {
		if a.Channel != "STABLE" && a.Channel != "TESTING" {
			continue
		}
		if CompareVersions(a.Version, u.InstalledVersion) <= 0 {
			continue
		}
		if !found || CompareVersions(a.Version, best.Version) > 0 {
			best = a
			found = true
		}
	}
	return best, found
}

// CompareVersions compares dotted version strings numerically where
// possible ("1.10.0" > "1.9.3"). Non-numeric parts compare as strings.
func CompareVersions(a, b string) int {
	pa := strings.Split(strings.TrimPrefix(a, "v"), ".")
	pb := strings.Split(strings.TrimPrefix(b, "v"), ".")
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var sa, sb string
		if i < len(pa) {
			sa = pa[i]
		}
		if i < len(pb) {
			sb = pb[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		if errA == nil && errB == nil {
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			continue
		}
		if c := strings.Compare(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

// UpdateProgress is the reply of GET and POST system/update/latest.
type UpdateProgress struct {
	State    string `json:"state"`
	Progress struct {
		State          string `json:"state"`
		CurrentStep    int    `json:"current_step"`
		TotalSteps     int    `json:"total_steps"`
		CurrentPercent int    `json:"current_percent"`
	} `json:"progress"`
}

func (u *UpdateProgress) validate() error {
	if u.State == "" {
		return errors.New("update progress: missing state")
	}
	return nil
}

// VersionInfo is GET pub/version.
type VersionInfo struct {
	DeviceName string `json:"device_name"`
	Hostname   string `json:"hostname"`
	Address    string `json:"address"`
	MACAddress string `json:"mac_address"`
	API        string `json:"api"`
	Core       string `json:"core"`
	UI         string `json:"ui"`
	OS         string `json:"os"`
}

// Stats is GET pub/status.
type Stats struct {
	Memory struct {
		TotalMemory     uint64 `json:"total_memory"`
		AvailableMemory uint64 `json:"available_memory"`
	} `json:"memory"`
	Filesystem struct {
		UserData struct {
			Used      uint64 `json:"used"`
			Available uint64 `json:"available"`
		} `json:"user_data"`
	} `json:"filesystem"`
	LoadAvg struct {
		One     float64 `json:"one"`
		Five    float64 `json:"five"`
		Fifteen float64 `json:"fifteen"`
	} `json:"load_avg"`
}

// ActivityPayload is one item of GET activities, or GET activities/{id}.
// Options is only present on the detail endpoint.
type ActivityPayload struct {
	EntityID   string        `json:"entity_id"`
	Name       LocalizedText `json:"name"`
	Attributes struct {
		State string `json:"state"`
	} `json:"attributes"`
	Options *struct {
		IncludedEntities []IncludedEntity `json:"included_entities"`
	} `json:"options"`
}

func (a *ActivityPayload) validate() error {
	if a.EntityID == "" {
		return errors.New("activity: missing entity_id")
	}
	return nil
}

// IncludedEntityIDs returns the ids of the entities an activity controls,
// in hub order.
func (a *ActivityPayload) IncludedEntityIDs() []string {
	if a.Options == nil {
		return nil
	}
	ids := make([]string, 0, len(a.Options.IncludedEntities))
	for _, e := range a.Options.IncludedEntities {
		if e.EntityID != "" {
			ids = append(ids, e.EntityID)
		}
	}
	return ids
}

// IncludedEntity is an entity reference inside activity options.
type IncludedEntity struct {
	EntityID   string        `json:"entity_id"`
	EntityType string        `json:"entity_type"`
	Name       LocalizedText `json:"name"`
}

// ActivityGroupPayload is one item of GET activity_groups.
type ActivityGroupPayload struct {
	GroupID    string        `json:"group_id"`
	Name       LocalizedText `json:"name"`
	Activities GroupMembers  `json:"activities"`
}

func (g *ActivityGroupPayload) validate() error {
	if g.GroupID == "" {
		return errors.New("activity group: missing group_id")
	}
	return nil
}

// EntityPayload is one item of GET entities.
type EntityPayload struct {
	EntityID   string         `json:"entity_id"`
	EntityType string         `json:"entity_type"`
	Name       LocalizedText  `json:"name"`
	Attributes map[string]any `json:"attributes"`
}

func (e *EntityPayload) validate() error {
	if e.EntityID == "" {
		return errors.New("entity: missing entity_id")
	}
	return nil
}

// DockPayload is one item of GET docks/devices. WirelessCharging is only
// sent by docks that support it.
type DockPayload struct {
	DockID           string `json:"dock_id"`
	Name             string `json:"name"`
	Model            string `json:"model"`
	Active           bool   `json:"active"`
	State            string `json:"state"`
	WirelessCharging *bool  `json:"wireless_charging"`
	ChargingStatus   string `json:"charging_status"`
}

func (d *DockPayload) validate() error {
	if d.DockID == "" {
		return errors.New("dock: missing dock_id")
	}
	return nil
}

// IRPort is an output port on an IR emitter.
type IRPort struct {
	PortID FlexibleID `json:"port_id"`
	Name   string     `json:"name"`
}

// IREmitterPayload is one item of GET ir/emitters.
type IREmitterPayload struct {
	DeviceID string   `json:"device_id"`
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	Active   bool     `json:"active"`
	Ports    []IRPort `json:"ports"`
}

func (e *IREmitterPayload) validate() error {
	if e.DeviceID == "" {
		return errors.New("ir emitter: missing device_id")
	}
	return nil
}

// RemotePayload is one item of GET remotes (IR remote entities).
type RemotePayload struct {
	EntityID string        `json:"entity_id"`
	Name     LocalizedText `json:"name"`
	Enabled  bool          `json:"enabled"`
}

func (r *RemotePayload) validate() error {
	if r.EntityID == "" {
		return errors.New("remote: missing entity_id")
	}
	return nil
}

// IRCodesetPayload is GET remotes/{id}/ir.
type IRCodesetPayload struct {
	ID FlexibleID `json:"id"`
}

func (c *IRCodesetPayload) validate() error {
	if c.ID == "" {
		return errors.New("ir codeset: missing id")
	}
	return nil
}

// IntegrationPayload is one item of GET intg/instances.
type IntegrationPayload struct {
	IntegrationID string        `json:"integration_id"`
	DriverID      string        `json:"driver_id"`
	Name          LocalizedText `json:"name"`
	DeviceState   string        `json:"device_state"`
	Enabled       bool          `json:"enabled"`
}

func (i *IntegrationPayload) validate() error {
	if i.IntegrationID == "" {
		return errors.New("integration: missing integration_id")
	}
	return nil
}

// APIKeyPayload is an item of GET auth/api_keys, or the reply to POST
// auth/api_keys (which additionally carries APIKey).
type APIKeyPayload struct {
	KeyID        string   `json:"key_id"`
	Name         string   `json:"name"`
	APIKey       string   `json:"api_key"`
	Scopes       []string `json:"scopes"`
	CreationDate string   `json:"creation_date"`
}

func (k *APIKeyPayload) validate() error {
	if k.Name == "" && k.KeyID == "" {
		return errors.New("api key: missing name and key_id")
	}
	return nil
}

// validator is implemented by payloads with required fields.
type validator interface {
	validate() error
}

// decodeObject decodes a single JSON object into out and validates it.
func decodeObject(data []byte, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return fmt.Errorf("expected object: %w", errShape)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	if v, ok := out.(validator); ok {
		return v.validate()
	}
	return nil
}

// decodeList decodes a bare array or an {"items": [...]} envelope.
func decodeList[T any, PT interface {
	*T
	validator
}](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)

	var items []T
	switch {
	case len(data) > 0 && data[0] == '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
	case len(data) > 0 && data[0] == '{':
		var envelope struct {
			Items *[]T `json:"items"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		if envelope.Items == nil {
			return nil, fmt.Errorf("object without items: %w", errShape)
		}
		items = *envelope.Items
	default:
		return nil, fmt.Errorf("expected list: %w", errShape)
	}

	for i := range items {
		if err := PT(&items[i]).validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return items, nil
}
