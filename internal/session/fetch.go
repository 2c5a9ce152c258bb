package session

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/model"
)

const (
	// mediaPlayerType is the entity type whose attributes the model tracks.
	mediaPlayerType = "media_player"

	bytesPerMB = 1 << 20
)

// optional swallows a 404 so endpoints missing on older firmware leave
// their section untouched.
func optional(err error) error {
	if f, ok := hub.AsFault(err); ok && f.NotFound() {
		return nil
	}
	return err
}

// hubParts collects the replies that make up HubStatus.
type hubParts struct {
	system  *hub.SystemInfo
	config  *hub.HubConfig
	battery *hub.BatteryInfo
	power   *hub.PowerInfo
	light   *hub.AmbientLight
	update  *hub.UpdateInfo
	version *hub.VersionInfo
	stats   *hub.Stats
}

// goHub schedules the hub status requests on g.
func (s *Session) goHub(ctx context.Context, g *errgroup.Group, p *hubParts) {
	g.Go(func() (err error) {
		p.system, err = s.api.System(ctx)
		return err
	})
	g.Go(func() (err error) {
		p.battery, err = s.api.Battery(ctx)
		return err
	})
	g.Go(func() (err error) {
		p.config, err = s.api.Config(ctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		p.power, err = s.api.Power(ctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		p.light, err = s.api.AmbientLight(ctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		p.update, err = s.api.Update(ctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		p.version, err = s.api.Version(ctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		p.stats, err = s.api.Stats(ctx)
		return optional(err)
	})
}

// fetchQuick loads hub status and the activity list.
func (s *Session) fetchQuick(ctx context.Context) (model.Update, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)

	var (
		parts      hubParts
		activities []hub.ActivityPayload
	)
	s.goHub(gctx, g, &parts)
	g.Go(func() (err error) {
		activities, err = s.api.Activities(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Update{}, err
	}

	u := model.Update{
		Hub:        parts.status(),
		Activities: make([]model.ActivityData, 0, len(activities)),
	}
	for _, a := range activities {
		u.Activities = append(u.Activities, model.ActivityData{
			ID:    a.EntityID,
			Name:  string(a.Name),
			State: model.ParseState(a.Attributes.State),
		})
	}
	return u, nil
}

// fetchFull loads everything in two rounds: lists first, then the
// per-activity details and per-remote codesets the lists name.
func (s *Session) fetchFull(ctx context.Context) (model.Update, error) {
	var (
		parts      hubParts
		activities []hub.ActivityPayload
		groups     []hub.ActivityGroupPayload
		players    []hub.EntityPayload
		docks      []hub.DockPayload
		emitters   []hub.IREmitterPayload
		remotes    []hub.RemotePayload
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)

	s.goHub(gctx, g, &parts)
	g.Go(func() (err error) {
		activities, err = s.api.Activities(gctx)
		return err
	})
	g.Go(func() (err error) {
		groups, err = s.api.ActivityGroups(gctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		players, err = s.api.Entities(gctx, mediaPlayerType)
		return optional(err)
	})
	g.Go(func() (err error) {
		docks, err = s.api.Docks(gctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		emitters, err = s.api.IREmitters(gctx)
		return optional(err)
	})
	g.Go(func() (err error) {
		remotes, err = s.api.Remotes(gctx)
		return optional(err)
	})
	if err := g.Wait(); err != nil {
		return model.Update{}, err
	}

	details := make([]*hub.ActivityPayload, len(activities))
	codesets := make([]*hub.IRCodesetPayload, len(remotes))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FetchConcurrency)
	for i, a := range activities {
		g.Go(func() (err error) {
			details[i], err = s.api.Activity(gctx, a.EntityID)
			return err
		})
	}
	for i, r := range remotes {
		g.Go(func() (err error) {
			codesets[i], err = s.api.IRCodeset(gctx, r.EntityID)
			return optional(err)
		})
	}
	if err := g.Wait(); err != nil {
		return model.Update{}, err
	}

	return model.Update{
		Hub:        parts.status(),
		Activities: activityData(activities, details),
		Groups:     groupData(groups),
		Entities:   entityData(details, players),
		Docks:      dockData(docks, emitters),
		IRDevices:  irDeviceData(remotes, codesets),
	}, nil
}

func activityData(list []hub.ActivityPayload, details []*hub.ActivityPayload) []model.ActivityData {
	out := make([]model.ActivityData, 0, len(list))
	for i, a := range list {
		ids := []string{}
		if d := details[i]; d != nil {
			if included := d.IncludedEntityIDs(); included != nil {
				ids = included
			}
		}
		out = append(out, model.ActivityData{
			ID:        a.EntityID,
			Name:      string(a.Name),
			State:     model.ParseState(a.Attributes.State),
			EntityIDs: ids,
		})
	}
	return out
}

func groupData(list []hub.ActivityGroupPayload) []model.GroupData {
	out := make([]model.GroupData, 0, len(list))
	for _, g := range list {
		out = append(out, model.GroupData{
			ID:          g.GroupID,
			Name:        string(g.Name),
			ActivityIDs: []string(g.Activities),
		})
	}
	return out
}

// entityData is the union of the entities activities include and the
// media players, which carry live attributes.
func entityData(details []*hub.ActivityPayload, players []hub.EntityPayload) []model.EntityData {
	out := []model.EntityData{}
	index := make(map[string]int)

	add := func(e model.EntityData) {
		if i, ok := index[e.ID]; ok {
			if e.Attributes != nil {
				out[i].Attributes = e.Attributes
			}
			if out[i].Name == "" {
				out[i].Name = e.Name
			}
			if out[i].Type == "" {
				out[i].Type = e.Type
			}
			return
		}
		index[e.ID] = len(out)
		out = append(out, e)
	}

	for _, d := range details {
		if d == nil || d.Options == nil {
			continue
		}
		for _, e := range d.Options.IncludedEntities {
			if e.EntityID == "" {
				continue
			}
			add(model.EntityData{ID: e.EntityID, Name: string(e.Name), Type: e.EntityType})
		}
	}
	for _, p := range players {
		add(model.EntityData{
			ID:         p.EntityID,
			Name:       string(p.Name),
			Type:       p.EntityType,
			Attributes: p.Attributes,
		})
	}
	return out
}

// dockData joins docks with the IR emitters of the same id. Emitters with
// no dock entry are kept as docks without charging support.
func dockData(docks []hub.DockPayload, emitters []hub.IREmitterPayload) []model.DockData {
	byID := make(map[string]hub.IREmitterPayload, len(emitters))
	for _, e := range emitters {
		byID[e.DeviceID] = e
	}

	out := make([]model.DockData, 0, len(docks)+len(emitters))
	seen := make(map[string]bool, len(docks))
	for _, d := range docks {
		seen[d.DockID] = true
		dd := model.DockData{
			ID:             d.DockID,
			Name:           d.Name,
			Model:          d.Model,
			ChargingStatus: d.ChargingStatus,
			Reachable:      d.Active || strings.EqualFold(d.State, "ACTIVE"),
		}
		if d.WirelessCharging != nil {
			dd.ChargingCapable = true
			dd.ChargingEnabled = *d.WirelessCharging
		}
		if e, ok := byID[d.DockID]; ok {
			dd.Ports = irPorts(e.Ports)
			if dd.Name == "" {
				dd.Name = e.Name
			}
		}
		out = append(out, dd)
	}
	for _, e := range emitters {
		if seen[e.DeviceID] {
			continue
		}
		out = append(out, model.DockData{
			ID:        e.DeviceID,
			Name:      e.Name,
			Model:     e.Type,
			Ports:     irPorts(e.Ports),
			Reachable: e.Active,
		})
	}
	return out
}

func irPorts(ports []hub.IRPort) []model.IRPort {
	out := make([]model.IRPort, 0, len(ports))
	for _, p := range ports {
		out = append(out, model.IRPort{ID: string(p.PortID), Name: p.Name})
	}
	return out
}

func irDeviceData(remotes []hub.RemotePayload, codesets []*hub.IRCodesetPayload) []model.IRDeviceData {
	out := make([]model.IRDeviceData, 0, len(remotes))
	for i, r := range remotes {
		d := model.IRDeviceData{ID: r.EntityID, Name: string(r.Name)}
		if c := codesets[i]; c != nil {
			d.CodesetID = string(c.ID)
		}
		out = append(out, d)
	}
	return out
}

// status assembles HubStatus from whatever replies arrived.
func (p *hubParts) status() *model.HubStatus {
	h := &model.HubStatus{}

	if p.system != nil {
		h.ModelName = p.system.ModelName
		h.ModelNumber = p.system.ModelNumber
		h.SerialNumber = p.system.SerialNumber
		h.HWRevision = p.system.HWRevision
	}
	if p.config != nil {
		h.Name = p.config.Device.Name
	}
	if p.battery != nil {
		h.BatteryLevel = *p.battery.Capacity
		h.BatteryStatus = p.battery.Status
		h.Charging = p.battery.PowerSupply
	}
	if p.power != nil {
		h.PowerMode = p.power.PowerMode
	}
	if p.light != nil {
		h.AmbientLight = *p.light.Intensity
		h.HasAmbientLight = true
	}
	if p.update != nil {
		h.FirmwareVersion = p.update.InstalledVersion
		h.UpdateInProgress = p.update.UpdateInProgress
		h.AutomaticUpdates = p.update.UpdateCheckEnabled
		if latest, ok := p.update.Latest(); ok {
			h.LatestVersion = latest.Version
			h.ReleaseNotesURL = latest.ReleaseNotesURL
		}
	}
	if p.version != nil {
		if h.Name == "" {
			h.Name = p.version.DeviceName
		}
		if h.FirmwareVersion == "" {
			h.FirmwareVersion = p.version.OS
		}
		h.Hostname = p.version.Hostname
		h.Address = p.version.Address
		h.MACAddress = p.version.MACAddress
		h.APIVersion = p.version.API
	}
	if p.stats != nil {
		h.MemoryTotalMB = float64(p.stats.Memory.TotalMemory) / bytesPerMB
		h.MemoryAvailableMB = float64(p.stats.Memory.AvailableMemory) / bytesPerMB
		ud := p.stats.Filesystem.UserData
		h.StorageTotalMB = float64(ud.Used+ud.Available) / bytesPerMB
		h.StorageAvailableMB = float64(ud.Available) / bytesPerMB
		h.LoadOne = p.stats.LoadAvg.One
		h.LoadFive = p.stats.LoadAvg.Five
		h.LoadFifteen = p.stats.LoadAvg.Fifteen
	}
	if h.Name == "" {
		h.Name = h.ModelName
	}
	return h
}
