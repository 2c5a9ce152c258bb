package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	_ "github.com/nerrad567/uc-remote-core/migrations"

	"github.com/nerrad567/uc-remote-core/internal/credential"
	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/hub"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/config"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/database"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/logging"
	"github.com/nerrad567/uc-remote-core/internal/session"
)

// Environment variables read as flag defaults.
const (
	envURL    = "UC_REMOTE_URL"
	envAPIKey = "UC_REMOTE_APIKEY"
	envPIN    = "UC_REMOTE_PIN"
	envConfig = "UCREMOTE_CONFIG"
)

// defaultCommandTimeout bounds a one-shot command, session load included.
const defaultCommandTimeout = 30 * time.Second

// options are the persistent flags shared by every command.
type options struct {
	configPath string
	url        string
	apiKey     string
	pin        string
	output     string
	logLevel   string
	timeout    time.Duration
}

// app carries state shared by the commands of one invocation.
type app struct {
	opts   options
	cfg    *config.Config
	log    *logging.Logger
	out    io.Writer
	errOut io.Writer

	// getenv is os.Getenv, replaced in tests.
	getenv func(string) string
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		out:    out,
		errOut: errOut,
		getenv: os.Getenv,
		log:    logging.Discard(),
	}
}

// newRootCmd builds the command tree.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ucremote",
		Short:         "Control an Unfolded Circle Remote hub",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.Name() == serveCmdName)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", a.getenv(envConfig), "config file (optional, env "+envConfig+")")
	flags.StringVarP(&a.opts.url, "url", "u", a.getenv(envURL), "hub address or API base URL (env "+envURL+")")
	flags.StringVarP(&a.opts.apiKey, "apikey", "k", a.getenv(envAPIKey), "hub API key (env "+envAPIKey+")")
	flags.StringVarP(&a.opts.pin, "pin", "p", a.getenv(envPIN), "web configurator PIN for key management (env "+envPIN+")")
	flags.StringVarP(&a.opts.output, "output", "o", outputTable, "output format: table or json")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	flags.DurationVar(&a.opts.timeout, "timeout", defaultCommandTimeout, "overall deadline for one-shot commands")

	root.AddCommand(
		newDiscoverCmd(a),
		newCreateKeyCmd(a),
		newRevokeKeyCmd(a),
		newListKeysCmd(a),
		newCanConnectCmd(a),
		newInfoCmd(a),
		newStatusCmd(a),
		newBatteryCmd(a),
		newActivitiesCmd(a),
		newEntitiesCmd(a),
		newDocksCmd(a),
		newIRDevicesCmd(a),
		newIntegrationsCmd(a),
		newStartActivityCmd(a),
		newStopActivityCmd(a),
		newButtonCmd(a),
		newIRCmd(a),
		newIRCodeCmd(a),
		newSystemCmd(a),
		newDockChargingCmd(a),
		newFirmwareCmd(a),
		newWakeCmd(a),
		newTokenCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return root
}

// load resolves the configuration: file (or defaults), UCREMOTE_* env
// overrides, then the command-line flags. One-shot commands without a
// config file log warnings only.
func (a *app) load(daemon bool) error {
	if a.opts.output != outputTable && a.opts.output != outputJSON {
		return fmt.Errorf("unknown output format %q (want table or json)", a.opts.output)
	}

	var cfg *config.Config
	if a.opts.configPath != "" {
		loaded, err := config.Load(a.opts.configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	if a.opts.url != "" {
		cfg.Remote.URL = a.opts.url
	}
	if a.opts.apiKey != "" {
		cfg.Remote.APIKey = a.opts.apiKey
	}
	if a.opts.pin != "" {
		cfg.Remote.PIN = a.opts.pin
	}
	switch {
	case a.opts.logLevel != "":
		cfg.Logging.Level = a.opts.logLevel
	case !daemon && a.opts.configPath == "":
		cfg.Logging.Level = "warn"
	}

	a.cfg = cfg
	if strings.EqualFold(cfg.Logging.Output, "stdout") {
		a.log = logging.NewWithWriter(cfg.Logging, version, a.out)
	} else {
		a.log = logging.NewWithWriter(cfg.Logging, version, a.errOut)
	}
	return nil
}

// commandContext bounds a one-shot command by --timeout.
func (a *app) commandContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opts.timeout)
}

// baseURL returns the normalised hub URL or an error naming the flag.
func (a *app) baseURL() (string, error) {
	if a.cfg.Remote.URL == "" {
		return "", fmt.Errorf("%w: hub address is required (--url or %s)", hub.ErrUnreachable, envURL)
	}
	base, err := hub.NormalizeURL(a.cfg.Remote.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", hub.ErrUnreachable, err)
	}
	return base, nil
}

// requirePIN returns the configured PIN or an error naming the flag.
func (a *app) requirePIN() (string, error) {
	if a.cfg.Remote.PIN == "" {
		return "", fmt.Errorf("%w: pin is required (--pin or %s)", hub.ErrAuthRejected, envPIN)
	}
	return a.cfg.Remote.PIN, nil
}

// credentials returns a manager over the HTTP transport.
func (a *app) credentials() *credential.Manager {
	m := credential.NewManager(hub.NewHTTPTransportFactory(
		hub.WithRequestTimeout(a.cfg.Remote.RequestTimeout),
	))
	m.SetLogger(a.log.With("component", "credential"))
	return m
}

// openDB opens the local database and applies migrations. The returned
// function closes it.
func (a *app) openDB(ctx context.Context) (*sql.DB, func(), error) {
	db, err := database.Open(ctx, database.Config{
		Path:        a.cfg.Database.Path,
		WALMode:     a.cfg.Database.WALMode,
		BusyTimeout: a.cfg.Database.BusyTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			a.log.Warn("error closing database", "error", err)
		}
	}
	return db.DB, closeDB, nil
}

// openStore opens the credential cache.
func (a *app) openStore(ctx context.Context) (*credential.Store, func(), error) {
	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	return credential.NewStore(db), closeDB, nil
}

// resolveAPIKey returns the configured key, falling back to the key cached
// by create-key for this hub.
func (a *app) resolveAPIKey(ctx context.Context, base string) (string, error) {
	if a.cfg.Remote.APIKey != "" {
		return a.cfg.Remote.APIKey, nil
	}
	if _, err := os.Stat(a.cfg.Database.Path); err != nil {
		return "", fmt.Errorf("%w (--apikey or %s, or run create-key)", session.ErrNoCredential, envAPIKey)
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return "", err
	}
	defer closeStore()

	c, err := store.Get(ctx, base, a.cfg.Remote.KeyLabel)
	if err != nil {
		if errors.Is(err, hub.ErrNotFound) {
			return "", fmt.Errorf("%w (--apikey or %s, or run create-key)", session.ErrNoCredential, envAPIKey)
		}
		return "", err
	}
	a.log.Debug("using cached api key", "hub", base, "label", c.Label)
	return c.Key, nil
}

// sessionConfig converts the config sections into a session.Config.
func (a *app) sessionConfig(base, apiKey string) session.Config {
	return session.Config{
		BaseURL:          base,
		APIKey:           apiKey,
		RequestTimeout:   a.cfg.Remote.RequestTimeout,
		RefreshInterval:  a.cfg.Session.RefreshInterval,
		FetchConcurrency: a.cfg.Session.FetchConcurrency,
		TransitionGrace:  a.cfg.Session.TransitionGrace,
	}
}

// openSession builds a session without loading it.
func (a *app) openSession(ctx context.Context) (*session.Session, error) {
	base, err := a.baseURL()
	if err != nil {
		return nil, err
	}
	key, err := a.resolveAPIKey(ctx, base)
	if err != nil {
		return nil, err
	}
	return session.Open(a.sessionConfig(base, key),
		session.WithLogger(a.log.With("component", "session")))
}

// loadSession opens a session and performs the initial load.
func (a *app) loadSession(ctx context.Context) (*session.Session, error) {
	s, err := a.openSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("loading hub state: %w", err)
	}
	return s, nil
}

// dispatchConfig converts the dispatch config section.
func (a *app) dispatchConfig() dispatch.Config {
	return dispatch.Config{
		MaxAttempts:    a.cfg.Dispatch.MaxAttempts,
		InitialBackoff: a.cfg.Dispatch.InitialBackoff,
		MaxBackoff:     a.cfg.Dispatch.MaxBackoff,
		Multiplier:     a.cfg.Dispatch.Multiplier,
		RepeatDelay:    a.cfg.Dispatch.RepeatDelay,
	}
}

// newDispatcher builds a dispatcher over a loaded session.
func (a *app) newDispatcher(s *session.Session, observers ...dispatch.Observer) *dispatch.Dispatcher {
	return dispatch.New(s.API(), s.Model(), a.dispatchConfig(),
		dispatch.WithLogger(a.log.With("component", "dispatch")),
		dispatch.WithObserver(dispatch.Observers(observers...)),
	)
}
