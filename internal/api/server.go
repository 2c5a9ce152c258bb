package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/uc-remote-core/internal/audit"
	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/config"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/logging"
	"github.com/nerrad567/uc-remote-core/internal/model"
	"github.com/nerrad567/uc-remote-core/internal/session"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultCommandTimeout bounds one command including dispatcher retries.
const defaultCommandTimeout = 30 * time.Second

// StateSource exposes the hub view. *session.Session satisfies it.
type StateSource interface {
	Snapshot() model.Snapshot
	Ready() bool
	LastRefresh() time.Time
	Generation() uint64
}

// Commander executes commands. *dispatch.Dispatcher satisfies it.
type Commander interface {
	PressButton(ctx context.Context, b dispatch.Button) (dispatch.Result, error)
	SendIR(ctx context.Context, ir dispatch.IR) (dispatch.Result, error)
	SendSystem(ctx context.Context, name string) (dispatch.Result, error)
	SetDockCharging(ctx context.Context, dockRef string, enabled bool) (dispatch.Result, error)
	StartActivity(ctx context.Context, ref string) (dispatch.Result, error)
	StopActivity(ctx context.Context, ref string) (dispatch.Result, error)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	State    StateSource
	Commands Commander

	// Audit, when set, records every command and serves GET /audit.
	Audit audit.Repository

	// Gatherer, when set, is exposed at /metrics.
	Gatherer prometheus.Gatherer

	// CommandTimeout defaults to 30 seconds.
	CommandTimeout time.Duration

	Version string
}

// Server is the HTTP API server for UC Remote Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	state     StateSource
	commands  Commander
	audit     audit.Repository
	gatherer  prometheus.Gatherer
	timeout   time.Duration
	version   string
	startTime time.Time

	hub     *Hub
	tickets *ticketStore
	auditCh chan *audit.Entry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc // cancels background goroutines on Close()
	done     chan struct{}

	// auditDone is closed once queued audit entries are written.
	auditCancel context.CancelFunc
	auditDone   chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if deps.State == nil {
		return nil, errors.New("state source is required")
	}
	if deps.Commands == nil {
		return nil, errors.New("commander is required")
	}
	if len(deps.Security.JWT.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}

	timeout := deps.CommandTimeout
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		state:     deps.State,
		commands:  deps.Commands,
		audit:     deps.Audit,
		gatherer:  deps.Gatherer,
		timeout:   timeout,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}
	if deps.Audit != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}
	s.hub = NewHub(deps.WS, deps.Logger)
	s.hub.replay = s.replay

	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It binds the listener synchronously so address errors are returned to
// the caller, then serves in a background goroutine until Close.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)
	if s.auditCh != nil {
		// Stopped after in-flight requests finish, not with srvCtx.
		var auditCtx context.Context
		auditCtx, s.auditCancel = context.WithCancel(context.Background())
		s.auditDone = make(chan struct{})
		go func(done chan struct{}) {
			defer close(done)
			s.drainAuditLog(auditCtx)
		}(s.auditDone)
	}

	s.listener = ln
	s.done = make(chan struct{})
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv, done := s.server, s.done
	go func() {
		defer close(done)
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", ln.Addr().String(),
				"cert", s.cfg.TLS.CertFile,
			)
			err = srv.ServeTLS(ln, s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", ln.Addr().String())
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv, done, cancel := s.server, s.done, s.cancel
	auditCancel, auditDone := s.auditCancel, s.auditDone
	s.server, s.listener, s.cancel = nil, nil, nil
	s.auditCancel, s.auditDone = nil, nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	// Cancel background goroutines (hub, ticket cleanup).
	if cancel != nil {
		cancel()
	}

	ctx, stop := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer stop()

	s.logger.Info("API server shutting down")
	err := srv.Shutdown(ctx)
	<-done
	if auditCancel != nil {
		auditCancel()
		<-auditDone
	}
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return errors.New("api server not started")
	}
	return nil
}

// RefreshHook returns a session hook that pushes each refresh outcome to
// WebSocket subscribers, and the snapshot itself when the refresh succeeded.
func (s *Server) RefreshHook() session.RefreshHook {
	return func(_ context.Context, r session.RefreshResult) {
		s.hub.Broadcast(ChannelRefresh, refreshEvent(r))
		if r.Err == nil {
			s.hub.Broadcast(ChannelState, s.state.Snapshot())
		}
	}
}

// refreshPayload is the body of a ChannelRefresh event.
type refreshPayload struct {
	Generation uint64    `json:"generation"`
	At         time.Time `json:"at"`
	DurationMS int64     `json:"duration_ms"`
	Result     string    `json:"result"`
	Error      string    `json:"error,omitempty"`
}

func refreshEvent(r session.RefreshResult) refreshPayload {
	p := refreshPayload{
		Generation: r.Generation,
		At:         r.At.UTC(),
		DurationMS: r.Duration.Milliseconds(),
		Result:     hub.ErrorCode(r.Err),
	}
	if r.Err != nil {
		p.Error = r.Err.Error()
	}
	return p
}

// replay returns the current state for a new subscriber.
func (s *Server) replay(channel string) (any, bool) {
	if channel != ChannelState || !s.state.Ready() {
		return nil, false
	}
	return s.state.Snapshot(), true
}
