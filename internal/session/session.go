package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/model"
)

// Defaults applied by New for zero Config fields.
const (
	DefaultRefreshInterval  = 30 * time.Second
	DefaultFetchConcurrency = 4
)

// Config is everything a session needs to know about its hub.
type Config struct {
	// BaseURL is the hub API base URL; a bare host is accepted.
	BaseURL string

	// APIKey is the adopted credential.
	APIKey string

	// RequestTimeout bounds each HTTP request. Zero uses the transport default.
	RequestTimeout time.Duration

	// RefreshInterval is the period used by Run.
	RefreshInterval time.Duration

	// FetchConcurrency bounds in-flight requests during a load.
	FetchConcurrency int

	// TransitionGrace is passed to the model. Zero uses the model default.
	TransitionGrace time.Duration
}

// Logger is the logging interface used by the session.
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

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for both the session and its model.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// Session is a connection to one hub and the model it maintains.
type Session struct {
	cfg    Config
	api    *hub.API
	model  *model.Model
	logger Logger
	now    func() time.Time

	mu          sync.RWMutex
	ready       bool
	lastRefresh time.Time
}

// New creates an uninitialised session that talks to the hub through t.
func New(cfg Config, t hub.Transport, opts ...Option) *Session {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultFetchConcurrency
	}

	s := &Session{
		cfg:    cfg,
		api:    hub.NewAPI(t),
		logger: noopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	modelOpts := []model.Option{model.WithClock(s.now)}
	if cfg.TransitionGrace > 0 {
		modelOpts = append(modelOpts, model.WithTransitionGrace(cfg.TransitionGrace))
	}
	s.model = model.New(modelOpts...)
	return s
}

// Open creates a session over the HTTP transport. The base URL is
// normalised.
func Open(cfg Config, opts ...Option) (*Session, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoCredential
	}
	base, err := hub.NormalizeURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hub.ErrUnreachable, err)
	}
	cfg.BaseURL = base

	t, err := hub.NewHTTPTransport(base, hub.APIKeyAuth(cfg.APIKey),
		hub.WithRequestTimeout(cfg.RequestTimeout))
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}
	return New(cfg, t, opts...), nil
}

// Init loads everything the hub exposes and marks the session ready.
// Calling it again performs another full load.
func (s *Session) Init(ctx context.Context) error {
	start := s.now()
	ticket := s.model.BeginRefresh()

	u, err := s.fetchFull(ctx)
	if err != nil {
		err = hub.Classify(ctx, err, hub.ErrAuthInvalid, hub.ErrProtocol)
		s.logger.Error("session init failed", "hub", s.cfg.BaseURL, "error", err)
		return fmt.Errorf("initialising session: %w", err)
	}

	gen, err := s.apply(ticket, u)
	if err != nil {
		return err
	}

	s.logger.Info("session initialised",
		"hub", s.cfg.BaseURL,
		"generation", gen,
		"activities", len(u.Activities),
		"entities", len(u.Entities),
		"docks", len(u.Docks),
		"duration", s.now().Sub(start),
	)
	return nil
}

// Update refreshes hub status and activity states.
func (s *Session) Update(ctx context.Context) error {
	if !s.Ready() {
		return ErrNotInitialised
	}

	ticket := s.model.BeginRefresh()

	u, err := s.fetchQuick(ctx)
	if err != nil {
		err = hub.Classify(ctx, err, hub.ErrAuthInvalid, hub.ErrProtocol)
		s.logger.Warn("session update failed", "hub", s.cfg.BaseURL, "error", err)
		return fmt.Errorf("updating session: %w", err)
	}

	gen, err := s.apply(ticket, u)
	if err != nil {
		return err
	}
	s.logger.Debug("session updated", "hub", s.cfg.BaseURL, "generation", gen)
	return nil
}

// apply merges u and records the refresh. A stale result is not an error.
func (s *Session) apply(ticket model.Ticket, u model.Update) (uint64, error) {
	gen, err := s.model.Apply(ticket, u)
	if errors.Is(err, model.ErrStaleRefresh) {
		s.logger.Debug("discarding stale refresh", "ticket", ticket, "generation", gen)
		return gen, nil
	}
	if err != nil {
		return gen, fmt.Errorf("applying refresh: %w", err)
	}

	s.mu.Lock()
	s.ready = true
	s.lastRefresh = s.now()
	s.mu.Unlock()
	return gen, nil
}

// CanConnect checks the base URL and API key with a lightweight request.
func (s *Session) CanConnect(ctx context.Context) error {
	if err := s.api.Ping(ctx); err != nil {
		return hub.Classify(ctx, err, hub.ErrAuthInvalid, hub.ErrProtocol)
	}
	return nil
}

// Integrations lists the integration instances configured on the hub.
func (s *Session) Integrations(ctx context.Context) ([]hub.IntegrationPayload, error) {
	items, err := s.api.Integrations(ctx)
	if err != nil {
		return nil, hub.Classify(ctx, err, hub.ErrAuthInvalid, hub.ErrProtocol)
	}
	return items, nil
}

// CheckForUpdate asks the hub to look for new firmware now.
func (s *Session) CheckForUpdate(ctx context.Context) (*hub.UpdateInfo, error) {
	info, err := s.api.CheckUpdate(ctx)
	if err != nil {
		return nil, hub.Classify(ctx, err, hub.ErrAuthInvalid, hub.ErrProtocol)
	}
	return info, nil
}

// UpdateStatus returns the progress of a running firmware update.
func (s *Session) UpdateStatus(ctx context.Context) (*hub.UpdateProgress, error) {
	progress, err := s.api.UpdateStatus(ctx)
	if err != nil {
		return nil, hub.Classify(ctx, err, hub.ErrAuthInvalid, hub.ErrProtocol)
	}
	return progress, nil
}

// Config returns the session configuration with defaults applied.
func (s *Session) Config() Config {
	return s.cfg
}

// BaseURL returns the hub API base URL.
func (s *Session) BaseURL() string {
	return s.cfg.BaseURL
}

// API returns the typed hub client the session uses.
func (s *Session) API() *hub.API {
	return s.api
}

// Model returns the model the session maintains.
func (s *Session) Model() *model.Model {
	return s.model
}

// Ready reports whether Init has succeeded.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// LastRefresh returns when a refresh was last applied.
func (s *Session) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// Generation returns the model generation.
func (s *Session) Generation() uint64 {
	return s.model.Generation()
}

// Hub returns the cached hub status.
func (s *Session) Hub() (model.HubStatus, bool) {
	return s.model.Hub()
}

// BatteryLevel returns the last reported battery percentage.
func (s *Session) BatteryLevel() int {
	h, _ := s.model.Hub()
	return h.BatteryLevel
}

// IsCharging reports whether the hub was last seen on external power.
func (s *Session) IsCharging() bool {
	h, _ := s.model.Hub()
	return h.Charging
}

// Activities returns all activities in hub order.
func (s *Session) Activities() []*model.Activity {
	return s.model.Activities()
}

// ActivityByID returns an activity by id.
func (s *Session) ActivityByID(id string) (*model.Activity, bool) {
	return s.model.Activity(id)
}

// ActivityGroups returns all activity groups.
func (s *Session) ActivityGroups() []*model.ActivityGroup {
	return s.model.Groups()
}

// Entities returns all known entities.
func (s *Session) Entities() []*model.Entity {
	return s.model.Entities()
}

// Docks returns all docks.
func (s *Session) Docks() []*model.Dock {
	return s.model.Docks()
}

// DockByName returns a dock by id or case-insensitive name.
func (s *Session) DockByName(name string) (*model.Dock, bool) {
	return s.model.FindDock(name)
}

// IRDevices returns all IR remotes.
func (s *Session) IRDevices() []*model.IRDevice {
	return s.model.IRDevices()
}

// Snapshot returns a consistent copy of the model.
func (s *Session) Snapshot() model.Snapshot {
	return s.model.Snapshot()
}
