package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// DefaultLabel is the key name used when the caller does not pick one.
const DefaultLabel = "ucremote"

// adminScope is the only scope the hub currently grants.
const adminScope = "admin"

// Credential is an API key issued by a hub. It is returned whole or not
// at all.
type Credential struct {
	// HubID is the normalised API base URL the key was issued by.
	HubID     string    `json:"hub_id"`
	Label     string    `json:"label"`
	Key       string    `json:"api_key"`
	KeyID     string    `json:"key_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// KeyInfo describes a registered key without its secret.
type KeyInfo struct {
	KeyID     string    `json:"key_id"`
	Label     string    `json:"name"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RevokeResult reports what Revoke did.
type RevokeResult int

const (
	// RevokeRevoked means a key with the label existed and was deleted.
	RevokeRevoked RevokeResult = iota + 1

	// RevokeNotFound means no key with the label was registered.
	RevokeNotFound
)

// String returns the result name.
func (r RevokeResult) String() string {
	switch r {
	case RevokeRevoked:
		return "revoked"
	case RevokeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Logger is the logging interface used by the manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager performs PIN-authenticated key management.
type Manager struct {
	factory hub.TransportFactory
	logger  Logger
	now     func() time.Time
}

// NewManager creates a manager that reaches hubs through factory.
func NewManager(factory hub.TransportFactory) *Manager {
	return &Manager{
		factory: factory,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// api normalises baseURL and builds a PIN-authenticated client for it.
func (m *Manager) api(ctx context.Context, baseURL, pin string) (*hub.API, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("%w: %w", hub.ErrTimeout, err)
	}
	if pin == "" {
		return nil, "", fmt.Errorf("%w: pin is empty", hub.ErrAuthRejected)
	}

	base, err := hub.NormalizeURL(baseURL)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", hub.ErrUnreachable, err)
	}

	t, err := m.factory(base, hub.PINAuth(pin))
	if err != nil {
		return nil, "", fmt.Errorf("%w: building transport: %w", hub.ErrUnreachable, err)
	}
	return hub.NewAPI(t), base, nil
}

// Create registers a new admin-scoped key named label and returns it.
func (m *Manager) Create(ctx context.Context, baseURL, pin, label string) (*Credential, error) {
	if label == "" {
		label = DefaultLabel
	}

	api, base, err := m.api(ctx, baseURL, pin)
	if err != nil {
		return nil, err
	}

	payload, err := api.CreateAPIKey(ctx, label, []string{adminScope})
	if err != nil {
		err = hub.Classify(ctx, err, hub.ErrAuthRejected, hub.ErrProtocol)
		m.logger.Warn("api key creation failed", "hub", base, "label", label, "error", err)
		return nil, fmt.Errorf("creating api key: %w", err)
	}

	cred := &Credential{
		HubID:     base,
		Label:     label,
		Key:       payload.APIKey,
		KeyID:     payload.KeyID,
		CreatedAt: parseCreationDate(payload.CreationDate, m.now),
	}
	if payload.Name != "" {
		cred.Label = payload.Name
	}

	m.logger.Info("api key created", "hub", base, "label", cred.Label, "key_id", cred.KeyID)
	return cred, nil
}

// List returns the keys registered on the hub.
func (m *Manager) List(ctx context.Context, baseURL, pin string) ([]KeyInfo, error) {
	api, _, err := m.api(ctx, baseURL, pin)
	if err != nil {
		return nil, err
	}

	payloads, err := api.ListAPIKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w",
			hub.Classify(ctx, err, hub.ErrAuthRejected, hub.ErrProtocol))
	}

	keys := make([]KeyInfo, 0, len(payloads))
	for _, p := range payloads {
		keys = append(keys, KeyInfo{
			KeyID:     p.KeyID,
			Label:     p.Name,
			Scopes:    p.Scopes,
			CreatedAt: parseCreationDate(p.CreationDate, nil),
		})
	}
	return keys, nil
}

// Revoke deletes the first key named label. A label that is not
// registered, or a key that disappears between the lookup and the delete,
// yields RevokeNotFound with a nil error.
func (m *Manager) Revoke(ctx context.Context, baseURL, pin, label string) (RevokeResult, error) {
	if label == "" {
		label = DefaultLabel
	}

	keys, err := m.List(ctx, baseURL, pin)
	if err != nil {
		return 0, err
	}

	var keyID string
	for _, k := range keys {
		if k.Label == label {
			keyID = k.KeyID
			break
		}
	}
	if keyID == "" {
		m.logger.Info("api key not registered", "label", label)
		return RevokeNotFound, nil
	}

	api, base, err := m.api(ctx, baseURL, pin)
	if err != nil {
		return 0, err
	}

	if err := api.DeleteAPIKey(ctx, keyID); err != nil {
		if f, ok := hub.AsFault(err); ok && f.NotFound() && ctx.Err() == nil {
			return RevokeNotFound, nil
		}
		return 0, fmt.Errorf("revoking api key: %w",
			hub.Classify(ctx, err, hub.ErrAuthRejected, hub.ErrProtocol))
	}

	m.logger.Info("api key revoked", "hub", base, "label", label, "key_id", keyID)
	return RevokeRevoked, nil
}

// parseCreationDate reads the hub's timestamp, falling back to now (or
// the zero time when now is nil).
func parseCreationDate(s string, now func() time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if now == nil {
		return time.Time{}
	}
	return now().UTC()
}

// IsRetryable reports whether a Create failure may be retried after the
// caller has checked List for a key that was created anyway.
func IsRetryable(err error) bool {
	return errors.Is(err, hub.ErrUnreachable) || errors.Is(err, hub.ErrTimeout)
}
