package model

import (
	"maps"
	"slices"
	"time"
)

// Activity is a hub scene such as "Watch TV". Obtain it from a Model;
// its fields change only when the model merges a refresh or records a
// transition.
type Activity struct {
	m  *Model
	id string

	name      string
	state     ActivityState
	entityIDs []string
	groupIDs  []string

	// Set while a locally initiated transition is pending.
	origin ActivityState
	target ActivityState
	since  time.Time
}

// ID returns the hub-assigned id.
func (a *Activity) ID() string { return a.id }

// Name returns the display name.
func (a *Activity) Name() string {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	return a.name
}

// State returns the current state.
func (a *Activity) State() ActivityState {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	return a.state
}

// Target returns the state a pending local transition is heading to.
func (a *Activity) Target() (ActivityState, bool) {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	return a.target, a.target != ""
}

// IsOn reports whether the activity is ON.
func (a *Activity) IsOn() bool {
	return a.State() == StateOn
}

// EntityIDs returns the ids of the entities this activity controls, in order.
func (a *Activity) EntityIDs() []string {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	return slices.Clone(a.entityIDs)
}

// GroupIDs returns the ids of the groups this activity belongs to.
func (a *Activity) GroupIDs() []string {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	return slices.Clone(a.groupIDs)
}

// View returns a value copy.
func (a *Activity) View() ActivityView {
	a.m.mu.RLock()
	defer a.m.mu.RUnlock()
	return a.viewLocked()
}

func (a *Activity) viewLocked() ActivityView {
	return ActivityView{
		ID:        a.id,
		Name:      a.name,
		State:     a.state,
		Target:    a.target,
		EntityIDs: slices.Clone(a.entityIDs),
		GroupIDs:  slices.Clone(a.groupIDs),
	}
}

func (a *Activity) clearTransition() {
	a.origin, a.target, a.since = "", "", time.Time{}
}

// ActivityGroup is an ordered, named collection of activities.
type ActivityGroup struct {
	m  *Model
	id string

	name        string
	activityIDs []string
}

// ID returns the group id.
func (g *ActivityGroup) ID() string { return g.id }

// Name returns the display name.
func (g *ActivityGroup) Name() string {
	g.m.mu.RLock()
	defer g.m.mu.RUnlock()
	return g.name
}

// ActivityIDs returns member activity ids in order.
func (g *ActivityGroup) ActivityIDs() []string {
	g.m.mu.RLock()
	defer g.m.mu.RUnlock()
	return slices.Clone(g.activityIDs)
}

// Contains reports whether the activity is a member.
func (g *ActivityGroup) Contains(activityID string) bool {
	g.m.mu.RLock()
	defer g.m.mu.RUnlock()
	return slices.Contains(g.activityIDs, activityID)
}

// View returns a value copy.
func (g *ActivityGroup) View() GroupView {
	g.m.mu.RLock()
	defer g.m.mu.RUnlock()
	return g.viewLocked()
}

func (g *ActivityGroup) viewLocked() GroupView {
	return GroupView{ID: g.id, Name: g.name, ActivityIDs: slices.Clone(g.activityIDs)}
}

// Entity is a controllable sub-device such as a media player. Attributes
// are refreshed opportunistically and may lag the hub.
type Entity struct {
	m  *Model
	id string

	name       string
	kind       string
	parentID   string
	attributes map[string]any
}

// ID returns the entity id.
func (e *Entity) ID() string { return e.id }

// Name returns the display name.
func (e *Entity) Name() string {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	return e.name
}

// Type returns the entity type tag, e.g. "media_player".
func (e *Entity) Type() string {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	return e.kind
}

// ParentActivityID returns the first activity that includes this entity,
// or "" if none does.
func (e *Entity) ParentActivityID() string {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	return e.parentID
}

// Attribute returns one attribute value.
func (e *Entity) Attribute(key string) (any, bool) {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	v, ok := e.attributes[key]
	return v, ok
}

// MediaTitle returns the media_title attribute, if it is a string.
func (e *Entity) MediaTitle() string {
	v, _ := e.Attribute("media_title")
	s, _ := v.(string)
	return s
}

// Volume returns the volume attribute, if it is numeric.
func (e *Entity) Volume() (float64, bool) {
	v, ok := e.Attribute("volume")
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// View returns a value copy.
func (e *Entity) View() EntityView {
	e.m.mu.RLock()
	defer e.m.mu.RUnlock()
	return e.viewLocked()
}

func (e *Entity) viewLocked() EntityView {
	return EntityView{
		ID:               e.id,
		Name:             e.name,
		Type:             e.kind,
		ParentActivityID: e.parentID,
		Attributes:       maps.Clone(e.attributes),
	}
}

// Dock is a charging and IR relay accessory.
type Dock struct {
	m  *Model
	id string

	name            string
	model           string
	ports           []IRPort
	chargingCapable bool
	chargingEnabled bool
	chargingStatus  string
	reachable       bool
}

// ID returns the dock id, which is also its IR emitter id.
func (d *Dock) ID() string { return d.id }

// Name returns the display name.
func (d *Dock) Name() string {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	return d.name
}

// Ports returns the dock's IR ports.
func (d *Dock) Ports() []IRPort {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	return slices.Clone(d.ports)
}

// HasPort reports whether portID is one of the dock's IR ports.
func (d *Dock) HasPort(portID string) bool {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	for _, p := range d.ports {
		if p.ID == portID {
			return true
		}
	}
	return false
}

// ChargingCapable reports whether the dock supports wireless charging.
func (d *Dock) ChargingCapable() bool {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	return d.chargingCapable
}

// ChargingEnabled reports whether wireless charging is switched on.
func (d *Dock) ChargingEnabled() bool {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	return d.chargingEnabled
}

// Reachable reports whether the hub currently sees the dock.
func (d *Dock) Reachable() bool {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	return d.reachable
}

// View returns a value copy.
func (d *Dock) View() DockView {
	d.m.mu.RLock()
	defer d.m.mu.RUnlock()
	return d.viewLocked()
}

func (d *Dock) viewLocked() DockView {
	return DockView{
		ID:              d.id,
		Name:            d.name,
		Model:           d.model,
		Ports:           slices.Clone(d.ports),
		ChargingCapable: d.chargingCapable,
		ChargingEnabled: d.chargingEnabled,
		ChargingStatus:  d.chargingStatus,
		Reachable:       d.reachable,
	}
}

// IRDevice is an IR remote entity and the codeset used to drive it.
type IRDevice struct {
	m  *Model
	id string

	name      string
	codesetID string
}

// ID returns the remote entity id.
func (r *IRDevice) ID() string { return r.id }

// Name returns the display name used to select the device.
func (r *IRDevice) Name() string {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.name
}

// CodesetID returns the IR codeset id.
func (r *IRDevice) CodesetID() string {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.codesetID
}

// View returns a value copy.
func (r *IRDevice) View() IRDeviceView {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return r.viewLocked()
}

func (r *IRDevice) viewLocked() IRDeviceView {
	return IRDeviceView{ID: r.id, Name: r.name, CodesetID: r.codesetID}
}
