package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/buoywatch/buoywatch/server/internal/alerts"
	"github.com/buoywatch/buoywatch/server/internal/api"
	"github.com/buoywatch/buoywatch/server/internal/config"
	"github.com/buoywatch/buoywatch/server/internal/ingest"
	"github.com/buoywatch/buoywatch/server/internal/metrics"
	"github.com/buoywatch/buoywatch/server/internal/receiver"
	"github.com/buoywatch/buoywatch/server/internal/settings"
	"github.com/buoywatch/buoywatch/server/internal/status"
	"github.com/buoywatch/buoywatch/server/internal/store"
	"github.com/buoywatch/buoywatch/server/internal/store/pgstore"
	"github.com/buoywatch/buoywatch/server/internal/store/redisstore"
	"github.com/buoywatch/buoywatch/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load() // ignore missing .env

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	slog.Info("buoywatch-server starting",
		"config", *configPath,
		"http_port", cfg.Server.HTTPPort,
		"timezone", cfg.Server.Timezone,
		"rules_source", cfg.Rules.Source,
	)

	loc, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		slog.Error("failed to load timezone", "tz", cfg.Server.Timezone, "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// In-memory store serves every concern without a configured backend.
	mem := store.NewMemory(cfg.Storage.Retention)
	go mem.Run(ctx)

	var (
		registry store.Registry     = mem
		state    store.StateStore   = mem
		history  store.HistoryStore = mem
		sink     store.AlertSink    = mem
		rulesSrc settings.Source
		fileSrc  *settings.StaticSource
	)
	register := func(_ context.Context, st config.StationConfig) error {
		mem.RegisterStation(st.ID, st.Owner, st.Settings())
		return nil
	}

	if addr := cfg.Storage.Redis.Addr(); addr != "" {
		rs, err := redisstore.Connect(ctx, addr, cfg.Storage.Redis.Password(), cfg.Storage.Redis.DB, cfg.Storage.Redis.Prefix)
		if err != nil {
			slog.Error("failed to connect to redis", "addr", addr, "err", err)
			os.Exit(1)
		}
		defer rs.Close()
		registry, state = rs, rs
		register = func(ctx context.Context, st config.StationConfig) error {
			return rs.RegisterStation(ctx, st.ID, st.Owner, st.Settings())
		}
		if cfg.Rules.Source == config.SourceRedis {
			rulesSrc = rs
		}
		slog.Info("redis store enabled", "addr", addr, "db", cfg.Storage.Redis.DB)
	}

	if dsn := cfg.Storage.Postgres.DSN(); dsn != "" {
		pg, err := pgstore.Connect(dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		history, sink = pg, pg
		slog.Info("postgres store enabled")
	}

	if rulesSrc == nil {
		fileSrc = settings.NewStaticSource(cfg.Rules.Document())
		rulesSrc = fileSrc
	}
	rules := settings.NewProvider(rulesSrc, cfg.Rules.CacheTTL)

	registerAll(ctx, register, cfg.Stations)

	collector := metrics.New()

	recorder := alerts.New(sink)
	recorder.OnAlert(collector.ObserveAlert)

	orch := ingest.New(ingest.Deps{
		History:  history,
		State:    state,
		Registry: registry,
		Alerts:   recorder,
		Rules:    rules,
		Location: loc,
		Observer: collector,
	})

	sched := status.New(registry, state, recorder, rules, cfg.Rules.Scheduler.Interval)
	sched.SetObserver(collector)
	go sched.Run(ctx)

	apiDeps := api.Deps{
		Ingest:   orch,
		Registry: registry,
		State:    state,
		Alerts:   sink,
		Rules:    rules,
		History:  recorder,
	}

	// WebSocket hub: station snapshot every ws_interval plus alerts as they fire.
	hub := ws.New(func(ctx context.Context) (any, error) {
		return api.BuildSnapshot(ctx, apiDeps)
	}, cfg.Server.WSInterval)
	recorder.OnAlert(hub.PublishAlert)
	go hub.Run(ctx)

	if broker := cfg.MQTT.Broker(); broker != "" {
		rcv := receiver.New(orch)
		err := rcv.Start(ctx, receiver.Config{
			Broker:   broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username(),
			Password: cfg.MQTT.Password(),
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
		})
		if err != nil {
			slog.Error("failed to start MQTT receiver", "err", err)
			os.Exit(1)
		}
	}

	go func() {
		err := config.Watch(ctx, *configPath, func(next *config.Config) {
			if fileSrc != nil {
				fileSrc.Set(next.Rules.Document())
			}
			rules.Invalidate()
			registerAll(ctx, register, next.Stations)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(apiDeps))
	httpMux.Handle("/metrics", collector)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("buoywatch-server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// registerAll upserts the configured stations. Failures are logged per
// station.
func registerAll(ctx context.Context, register func(context.Context, config.StationConfig) error, stations []config.StationConfig) {
	for _, st := range stations {
		if err := register(ctx, st); err != nil {
			slog.Error("station registration failed", "station", st.ID, "err", err)
		}
	}
	if len(stations) > 0 {
		slog.Info("stations registered", "count", len(stations))
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
