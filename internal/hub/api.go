package hub

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// pageLimit is the page size requested from list endpoints.
const pageLimit = 100

// API wraps a Transport with one typed method per hub endpoint.
//
// Errors are the raw *Fault from the transport, or a FaultProtocol fault
// when a reply does not decode. Callers classify them with Classify.
type API struct {
	t Transport
}

// NewAPI returns an API using t.
func NewAPI(t Transport) *API {
	return &API{t: t}
}

// Transport returns the underlying transport.
func (a *API) Transport() Transport {
	return a.t
}

func (a *API) send(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	resp, err := a.t.Do(ctx, Request{Method: method, Path: path, Query: query, Body: body})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func protocolFault(method, path string, err error) *Fault {
	return &Fault{Kind: FaultProtocol, Method: method, Path: path, Err: err}
}

// getObject fetches path and decodes a single object into out.
func (a *API) getObject(ctx context.Context, path string, out any) error {
	return a.object(ctx, http.MethodGet, path, nil, out)
}

// object sends a request and decodes the single-object reply into out.
func (a *API) object(ctx context.Context, method, path string, reqBody, out any) error {
	body, err := a.send(ctx, method, path, nil, reqBody)
	if err != nil {
		return err
	}
	if err := decodeObject(body, out); err != nil {
		return protocolFault(method, path, err)
	}
	return nil
}

// getList fetches a list endpoint.
func getList[T any, PT interface {
	*T
	validator
}](ctx context.Context, a *API, path string, query url.Values) ([]T, error) {
	body, err := a.send(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	items, err := decodeList[T, PT](body)
	if err != nil {
		return nil, protocolFault(http.MethodGet, path, err)
	}
	return items, nil
}

func limitQuery() url.Values {
	return url.Values{"limit": {strconv.Itoa(pageLimit)}}
}

// System returns model and serial information.
func (a *API) System(ctx context.Context) (*SystemInfo, error) {
	var out SystemInfo
	if err := a.getObject(ctx, "system", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Config returns the hub configuration (device name).
func (a *API) Config(ctx context.Context) (*HubConfig, error) {
	var out HubConfig
	if err := a.getObject(ctx, "cfg", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Battery returns the battery state.
func (a *API) Battery(ctx context.Context) (*BatteryInfo, error) {
	var out BatteryInfo
	if err := a.getObject(ctx, "system/power/battery", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Power returns the current power mode.
func (a *API) Power(ctx context.Context) (*PowerInfo, error) {
	var out PowerInfo
	if err := a.getObject(ctx, "system/power", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AmbientLight returns the ambient light sensor reading.
func (a *API) AmbientLight(ctx context.Context) (*AmbientLight, error) {
	var out AmbientLight
	if err := a.getObject(ctx, "system/sensors/ambient_light", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update returns firmware update information.
func (a *API) Update(ctx context.Context) (*UpdateInfo, error) {
	var out UpdateInfo
	if err := a.getObject(ctx, "system/update", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckUpdate makes the hub look for new firmware now and returns the
// refreshed update information.
func (a *API) CheckUpdate(ctx context.Context) (*UpdateInfo, error) {
	var out UpdateInfo
	if err := a.object(ctx, http.MethodPut, "system/update", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartUpdate downloads and installs the latest firmware.
func (a *API) StartUpdate(ctx context.Context) (*UpdateProgress, error) {
	var out UpdateProgress
	if err := a.object(ctx, http.MethodPost, "system/update/latest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus returns the progress of a running firmware update.
func (a *API) UpdateStatus(ctx context.Context) (*UpdateProgress, error) {
	var out UpdateProgress
	if err := a.getObject(ctx, "system/update/latest", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the unauthenticated version document.
func (a *API) Version(ctx context.Context) (*VersionInfo, error) {
	var out VersionInfo
	if err := a.getObject(ctx, "pub/version", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns memory, storage and load figures.
func (a *API) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := a.getObject(ctx, "pub/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Activities lists activities with their current state.
func (a *API) Activities(ctx context.Context) ([]ActivityPayload, error) {
	return getList[ActivityPayload](ctx, a, "activities", limitQuery())
}

// Activity returns one activity including its options.
func (a *API) Activity(ctx context.Context, id string) (*ActivityPayload, error) {
	var out ActivityPayload
	if err := a.getObject(ctx, "activities/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ActivityGroups lists activity groups.
func (a *API) ActivityGroups(ctx context.Context) ([]ActivityGroupPayload, error) {
	return getList[ActivityGroupPayload](ctx, a, "activity_groups", limitQuery())
}

// Entities lists entities of the given type ("" for all types).
func (a *API) Entities(ctx context.Context, entityType string) ([]EntityPayload, error) {
	q := limitQuery()
	if entityType != "" {
		q.Set("filter.entity_types", entityType)
	}
	return getList[EntityPayload](ctx, a, "entities", q)
}

// Docks lists paired docks.
func (a *API) Docks(ctx context.Context) ([]DockPayload, error) {
	return getList[DockPayload](ctx, a, "docks/devices", limitQuery())
}

// IREmitters lists IR emitters (docks and external blasters) with their ports.
func (a *API) IREmitters(ctx context.Context) ([]IREmitterPayload, error) {
	return getList[IREmitterPayload](ctx, a, "ir/emitters", nil)
}

// Remotes lists IR remote entities.
func (a *API) Remotes(ctx context.Context) ([]RemotePayload, error) {
	return getList[RemotePayload](ctx, a, "remotes", limitQuery())
}

// IRCodeset returns the codeset behind an IR remote entity.
func (a *API) IRCodeset(ctx context.Context, remoteID string) (*IRCodesetPayload, error) {
	var out IRCodesetPayload
	if err := a.getObject(ctx, "remotes/"+remoteID+"/ir", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Integrations lists configured integration instances.
func (a *API) Integrations(ctx context.Context) ([]IntegrationPayload, error) {
	return getList[IntegrationPayload](ctx, a, "intg/instances", limitQuery())
}

// Ping checks that the base URL and credential are accepted.
func (a *API) Ping(ctx context.Context) error {
	_, err := a.send(ctx, http.MethodHead, "activities", nil, nil)
	return err
}

// ListAPIKeys lists registered API keys. Requires PIN authentication.
func (a *API) ListAPIKeys(ctx context.Context) ([]APIKeyPayload, error) {
	return getList[APIKeyPayload](ctx, a, "auth/api_keys", nil)
}

// CreateAPIKey registers a new API key. Requires PIN authentication.
// The reply must carry the key itself.
func (a *API) CreateAPIKey(ctx context.Context, name string, scopes []string) (*APIKeyPayload, error) {
	const path = "auth/api_keys"
	body, err := a.send(ctx, http.MethodPost, path, nil, map[string]any{
		"name":   name,
		"scopes": scopes,
	})
	if err != nil {
		return nil, err
	}

	var out APIKeyPayload
	if err := decodeObject(body, &out); err != nil {
		return nil, protocolFault(http.MethodPost, path, err)
	}
	if out.APIKey == "" {
		return nil, protocolFault(http.MethodPost, path, fmt.Errorf("reply has no api_key"))
	}
	return &out, nil
}

// DeleteAPIKey removes an API key by id. Requires PIN authentication.
func (a *API) DeleteAPIKey(ctx context.Context, keyID string) error {
	_, err := a.send(ctx, http.MethodDelete, "auth/api_keys/"+keyID, nil, nil)
	return err
}

// EntityCommand executes cmdID on an entity. params may be nil.
func (a *API) EntityCommand(ctx context.Context, entityID, cmdID string, params map[string]any) error {
	body := map[string]any{
		"entity_id": entityID,
		"cmd_id":    cmdID,
	}
	if len(params) > 0 {
		body["params"] = params
	}
	_, err := a.send(ctx, http.MethodPut, "entities/"+entityID+"/command", nil, body)
	return err
}

// IRSend is the body of PUT ir/emitters/{id}/send. It names either a
// codeset command (CodesetID and CmdID) or a raw code (Code and Format).
type IRSend struct {
	CodesetID string   `json:"codeset_id,omitempty"`
	CmdID     string   `json:"cmd_id,omitempty"`
	Code      string   `json:"code,omitempty"`
	Format    IRFormat `json:"format,omitempty"`
	PortID    string   `json:"port_id,omitempty"`
}

// SendIR sends an IR code through an emitter.
func (a *API) SendIR(ctx context.Context, emitterID string, body IRSend) error {
	_, err := a.send(ctx, http.MethodPut, "ir/emitters/"+emitterID+"/send", nil, body)
	return err
}

// SystemCommand issues a power or restart command to the hub.
func (a *API) SystemCommand(ctx context.Context, cmd SystemCommand) error {
	_, err := a.send(ctx, http.MethodPost, "system", url.Values{"cmd": {string(cmd)}}, nil)
	return err
}

// SetDockCharging enables or disables wireless charging on a dock.
func (a *API) SetDockCharging(ctx context.Context, dockID string, enabled bool) error {
	_, err := a.send(ctx, http.MethodPatch, "docks/devices/"+dockID, nil, map[string]any{
		"wireless_charging": enabled,
	})
	return err
}
