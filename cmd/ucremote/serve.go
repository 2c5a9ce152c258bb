package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/api"
	"github.com/nerrad567/uc-remote-core/internal/audit"
	"github.com/nerrad567/uc-remote-core/internal/bridge"
	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/database"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/uc-remote-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/uc-remote-core/internal/observability/metrics"
	"github.com/nerrad567/uc-remote-core/internal/session"
)

const serveCmdName = "serve"

// auditRetention is how long command history is kept.
const auditRetention = 30 * 24 * time.Hour

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   serveCmdName,
		Short: "Keep a hub session refreshed and bridge it to MQTT, InfluxDB and the REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd)
		},
	}
}

// serve runs until the command context is cancelled. Infrastructure is
// opened in dependency order and closed in reverse by the deferred calls.
func (a *app) serve(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log := a.log
	cfg := a.cfg

	log.Info("starting UC Remote Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Open database (credential cache, command history)
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	auditRepo := audit.NewSQLiteRepository(db.DB)
	if n, pruneErr := auditRepo.Prune(ctx, time.Now().Add(-auditRetention)); pruneErr != nil {
		log.Warn("failed to prune command history", "error", pruneErr)
	} else if n > 0 {
		log.Info("pruned command history", "removed", n)
	}

	// Metrics registry
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Locate the hub
	if cfg.Remote.URL == "" {
		candidates := a.discover(cmd, cfg.Discovery.Service, cfg.Discovery.Domain)
		m.ObserveDiscovery(len(candidates))
		if len(candidates) == 0 {
			return errors.New("no hub configured and none discovered")
		}
		cfg.Remote.URL = candidates[0].BaseURL
		log.Info("using discovered hub", "hub", candidates[0].String(), "found", len(candidates))
	}

	s, err := a.openSession(ctx)
	if err != nil {
		return err
	}
	if initErr := s.Init(ctx); initErr != nil {
		// The refresher retries Init on every tick.
		log.Warn("initial hub load failed, will retry", "error", initErr)
	} else {
		m.ObserveSession(s)
		log.Info("hub session ready",
			"hub", s.BaseURL(),
			"activities", len(s.Activities()),
			"docks", len(s.Docks()),
		)
	}
	hubID := mqtt.TopicSegment(s.BaseURL())

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetry bridge.Telemetry
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		telemetry = influxClient
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var telemetryObserver dispatch.Observer
	if telemetry != nil {
		telemetryObserver = bridge.TelemetryObserver(hubID, telemetry)
	}
	dispatcher := a.newDispatcher(s, m, telemetryObserver)

	hooks := []session.RefreshHook{m.RefreshHook(s)}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.With("component", "mqtt"))
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		b, bridgeErr := bridge.New(bridge.Options{
			HubID:     hubID,
			MQTT:      mqttClient,
			Commands:  dispatcher,
			State:     s,
			Telemetry: telemetry,
			Audit:     auditRepo,
			Logger:    log.With("component", "bridge"),
			Version:   version,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}

		// Retained state may have been lost with the broker session.
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
			b.Resync()
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		if startErr := b.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			b.Stop()
		}()
		hooks = append(hooks, b.RefreshHook())
	} else {
		log.Info("MQTT bridge disabled")
	}

	// REST/WebSocket API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log.With("component", "api"),
			State:    s,
			Commands: dispatcher,
			Audit:    auditRepo,
			Gatherer: reg,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		hooks = append(hooks, apiServer.RefreshHook())
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	refreshDone := make(chan struct{})
	go func() {
		defer close(refreshDone)
		s.Run(ctx, cfg.Session.RefreshInterval, hooks...)
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Hooks publish through the clients closed below.
	<-refreshDone

	log.Info("UC Remote Core stopped")
	return nil
}

// healthCheck verifies the enabled infrastructure connections. Nil clients
// are disabled components and are skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	return nil
}
