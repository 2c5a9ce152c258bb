package model

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// DefaultTransitionGrace is how long a hub report of the state an activity
// is leaving is ignored after a start or stop was accepted.
//
// During the window a start the hub silently dropped is indistinguishable
// from one it has not begun, so the activity stays TRANSITIONING until the
// hub reports the target or the window ends. TRANSITIONING means a command
// was accepted, not that the hub is making progress.
const DefaultTransitionGrace = 15 * time.Second

// Ticket orders refreshes. Tickets are issued in call-start order.
type Ticket uint64

// Model holds the current view of one hub.
//
// Thread Safety:
//   - All methods, and all methods of the objects it returns, are safe for
//     concurrent use. One RWMutex guards the whole model.
type Model struct {
	mu sync.RWMutex

	grace time.Duration
	now   func() time.Time

	generation uint64
	issued     uint64
	applied    uint64

	hub        *HubStatus
	activities collection[Activity]
	groups     collection[ActivityGroup]
	entities   collection[Entity]
	docks      collection[Dock]
	irDevices  collection[IRDevice]
}

// Option configures a Model.
type Option func(*Model)

// WithTransitionGrace overrides DefaultTransitionGrace.
func WithTransitionGrace(d time.Duration) Option {
	return func(m *Model) {
		if d >= 0 {
			m.grace = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		m.now = now
	}
}

// New returns an empty model.
func New(opts ...Option) *Model {
	m := &Model{
		grace:      DefaultTransitionGrace,
		now:        time.Now,
		activities: newCollection[Activity](),
		groups:     newCollection[ActivityGroup](),
		entities:   newCollection[Entity](),
		docks:      newCollection[Dock](),
		irDevices:  newCollection[IRDevice](),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BeginRefresh issues the ticket a refresh must present to Apply.
// Call it before starting the fetch.
func (m *Model) BeginRefresh() Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return Ticket(m.issued)
}

// Apply merges u into the model and advances the generation.
//
// If a refresh with a later ticket has already been applied, u is
// discarded and ErrStaleRefresh is returned with the current generation.
func (m *Model) Apply(t Ticket, u Update) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if uint64(t) <= m.applied {
		return m.generation, fmt.Errorf("%w: ticket %d, applied %d", ErrStaleRefresh, t, m.applied)
	}
	m.applied = uint64(t)

	if u.Hub != nil {
		h := *u.Hub
		m.hub = &h
	}

	if u.Activities != nil {
		now := m.now()
		mergeSection(&m.activities, u.Activities,
			func(d ActivityData) string { return d.ID },
			func(id string) *Activity { return &Activity{m: m, id: id} },
			func(a *Activity, d ActivityData) {
				a.name = d.Name
				if d.EntityIDs != nil {
					a.entityIDs = slices.Clone(d.EntityIDs)
				}
				m.mergeStateLocked(a, d.State, now)
			})
	}

	if u.Groups != nil {
		mergeSection(&m.groups, u.Groups,
			func(d GroupData) string { return d.ID },
			func(id string) *ActivityGroup { return &ActivityGroup{m: m, id: id} },
			func(g *ActivityGroup, d GroupData) {
				g.name = d.Name
				g.activityIDs = slices.Clone(d.ActivityIDs)
			})
	}

	if u.Entities != nil {
		mergeSection(&m.entities, u.Entities,
			func(d EntityData) string { return d.ID },
			func(id string) *Entity { return &Entity{m: m, id: id} },
			func(e *Entity, d EntityData) {
				e.name = d.Name
				e.kind = d.Type
				e.attributes = maps.Clone(d.Attributes)
			})
	}

	if u.Docks != nil {
		mergeSection(&m.docks, u.Docks,
			func(d DockData) string { return d.ID },
			func(id string) *Dock { return &Dock{m: m, id: id} },
			func(k *Dock, d DockData) {
				k.name = d.Name
				k.model = d.Model
				k.ports = slices.Clone(d.Ports)
				k.chargingCapable = d.ChargingCapable
				k.chargingEnabled = d.ChargingEnabled
				k.chargingStatus = d.ChargingStatus
				k.reachable = d.Reachable
			})
	}

	if u.IRDevices != nil {
		mergeSection(&m.irDevices, u.IRDevices,
			func(d IRDeviceData) string { return d.ID },
			func(id string) *IRDevice { return &IRDevice{m: m, id: id} },
			func(r *IRDevice, d IRDeviceData) {
				r.name = d.Name
				r.codesetID = d.CodesetID
			})
	}

	m.reconcileLocked()
	m.generation++
	return m.generation, nil
}

// mergeStateLocked applies a hub-reported state to an activity, honouring
// a pending local transition. A report equal to the transition's origin is
// ignored until the grace window has passed, which keeps a rejected start
// or stop TRANSITIONING for up to that long.
func (m *Model) mergeStateLocked(a *Activity, reported ActivityState, now time.Time) {
	if a.target == "" {
		a.state = reported
		return
	}

	switch {
	case reported == a.target:
		a.state = reported
		a.clearTransition()
	case reported == StateTransitioning:
		a.state = StateTransitioning
	case reported == a.origin && now.Sub(a.since) < m.grace:
		// The hub has not started the sequence yet.
	default:
		a.state = reported
		a.clearTransition()
	}
}

// reconcileLocked prunes dangling references and recomputes derived links.
func (m *Model) reconcileLocked() {
	for _, a := range m.activities.byID {
		a.entityIDs = slices.DeleteFunc(a.entityIDs, func(id string) bool {
			_, ok := m.entities.byID[id]
			return !ok
		})
		a.groupIDs = a.groupIDs[:0]
	}

	for _, gid := range m.groups.order {
		g := m.groups.byID[gid]
		g.activityIDs = slices.DeleteFunc(g.activityIDs, func(id string) bool {
			_, ok := m.activities.byID[id]
			return !ok
		})
		for _, aid := range g.activityIDs {
			a := m.activities.byID[aid]
			if !slices.Contains(a.groupIDs, gid) {
				a.groupIDs = append(a.groupIDs, gid)
			}
		}
	}

	for _, e := range m.entities.byID {
		e.parentID = ""
	}
	for _, aid := range m.activities.order {
		for _, eid := range m.activities.byID[aid].entityIDs {
			if e := m.entities.byID[eid]; e.parentID == "" {
				e.parentID = aid
			}
		}
	}
}

// BeginTransition records that the hub accepted a start (target ON) or
// stop (target OFF) for the activity. The activity is TRANSITIONING until
// a refresh reports the target or another state.
func (m *Model) BeginTransition(id string, target ActivityState) error {
	if target != StateOn && target != StateOff {
		return ErrInvalidTarget
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.activities.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownActivity, id)
	}

	origin := a.state
	if origin != StateOn && origin != StateOff {
		origin = opposite(target)
	}
	a.origin, a.target, a.since = origin, target, m.now()
	a.state = StateTransitioning
	return nil
}

// Generation returns the number of refreshes applied so far.
func (m *Model) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Hub returns the hub status and whether one has been loaded.
func (m *Model) Hub() (HubStatus, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.hub == nil {
		return HubStatus{}, false
	}
	return *m.hub, true
}

// Activities returns all activities in hub order.
func (m *Model) Activities() []*Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activities.list()
}

// Activity looks up an activity by id.
func (m *Model) Activity(id string) (*Activity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activities.get(id)
}

// FindActivity looks up an activity by id, then by case-insensitive name.
func (m *Model) FindActivity(ref string) (*Activity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activities.find(ref, func(a *Activity) string { return a.name })
}

// ActiveActivities returns the activities that are ON.
func (m *Model) ActiveActivities() []*Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var on []*Activity
	for _, id := range m.activities.order {
		if a := m.activities.byID[id]; a.state == StateOn {
			on = append(on, a)
		}
	}
	return on
}

// Groups returns all activity groups in hub order.
func (m *Model) Groups() []*ActivityGroup {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.groups.list()
}

// Entities returns all entities in hub order.
func (m *Model) Entities() []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities.list()
}

// Entity looks up an entity by id.
func (m *Model) Entity(id string) (*Entity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities.get(id)
}

// Docks returns all docks in hub order.
func (m *Model) Docks() []*Dock {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docks.list()
}

// FindDock looks up a dock by id, then by case-insensitive name.
func (m *Model) FindDock(ref string) (*Dock, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docks.find(ref, func(d *Dock) string { return d.name })
}

// IRDevices returns all IR remote devices in hub order.
func (m *Model) IRDevices() []*IRDevice {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.irDevices.list()
}

// FindIRDevice looks up an IR device by id, then by case-insensitive name.
func (m *Model) FindIRDevice(ref string) (*IRDevice, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.irDevices.find(ref, func(r *IRDevice) string { return r.name })
}

// Snapshot returns a consistent value copy of the whole model.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Snapshot{
		Generation: m.generation,
		Activities: make([]ActivityView, 0, len(m.activities.order)),
		Groups:     make([]GroupView, 0, len(m.groups.order)),
		Entities:   make([]EntityView, 0, len(m.entities.order)),
		Docks:      make([]DockView, 0, len(m.docks.order)),
		IRDevices:  make([]IRDeviceView, 0, len(m.irDevices.order)),
	}
	if m.hub != nil {
		h := *m.hub
		s.Hub = &h
	}
	for _, a := range m.activities.list() {
		s.Activities = append(s.Activities, a.viewLocked())
	}
	for _, g := range m.groups.list() {
		s.Groups = append(s.Groups, g.viewLocked())
	}
	for _, e := range m.entities.list() {
		s.Entities = append(s.Entities, e.viewLocked())
	}
	for _, d := range m.docks.list() {
		s.Docks = append(s.Docks, d.viewLocked())
	}
	for _, r := range m.irDevices.list() {
		s.IRDevices = append(s.IRDevices, r.viewLocked())
	}
	return s
}

// collection is an id-indexed set that remembers hub order.
type collection[T any] struct {
	byID  map[string]*T
	order []string
}

func newCollection[T any]() collection[T] {
	return collection[T]{byID: make(map[string]*T)}
}

func (c *collection[T]) get(id string) (*T, bool) {
	v, ok := c.byID[id]
	return v, ok
}

func (c *collection[T]) list() []*T {
	out := make([]*T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *collection[T]) find(ref string, name func(*T) string) (*T, bool) {
	if v, ok := c.byID[ref]; ok {
		return v, true
	}
	for _, id := range c.order {
		if v := c.byID[id]; strings.EqualFold(name(v), ref) {
			return v, true
		}
	}
	return nil, false
}

// mergeSection replaces the contents of c with incoming, reusing the
// existing object for every id that survives. Records with an empty id
// are skipped; a repeated id updates the same object again.
func mergeSection[T, D any](c *collection[T], incoming []D, id func(D) string, create func(string) *T, apply func(*T, D)) {
	next := make(map[string]*T, len(incoming))
	order := make([]string, 0, len(incoming))

	for _, d := range incoming {
		key := id(d)
		if key == "" {
			continue
		}
		obj, seen := next[key]
		if !seen {
			obj = c.byID[key]
			if obj == nil {
				obj = create(key)
			}
			next[key] = obj
			order = append(order, key)
		}
		apply(obj, d)
	}

	c.byID, c.order = next, order
}
