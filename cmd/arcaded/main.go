package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/parlorlabs/arcade/internal/activity"
	"github.com/parlorlabs/arcade/internal/auth"
	"github.com/parlorlabs/arcade/internal/content"
	"github.com/parlorlabs/arcade/internal/coordinator"
	"github.com/parlorlabs/arcade/internal/hub"
	"github.com/parlorlabs/arcade/internal/metrics"
	"github.com/parlorlabs/arcade/internal/permit"
	"github.com/parlorlabs/arcade/internal/ratelimit"
	"github.com/parlorlabs/arcade/internal/server"
	"github.com/parlorlabs/arcade/internal/stats"
	"github.com/parlorlabs/arcade/internal/store"

	_ "net/http/pprof"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = ":8080"
	defaultMetricsAddr = ":9090"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.ShowVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		return nil
	}

	log := newLogger(cfg.Verbose)

	if cfg.EnablePprof {
		go func() {
			log.Info("starting pprof server", "address", "localhost:6060")
			if err := http.ListenAndServe("localhost:6060", nil); err != nil {
				log.Error("failed to start pprof server", "error", err)
			}
		}()
	}

	if cfg.MetricsAddr != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", cfg.MetricsAddr)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				os.Exit(1)
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			http.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, nil); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				os.Exit(1)
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var sessionStore store.Store
	if cfg.SnapshotDir != "" {
		snapStore, err := store.NewSnapshotStore(&store.SnapshotConfig{
			Logger: log,
			Dir:    cfg.SnapshotDir,
		})
		if err != nil {
			return fmt.Errorf("failed to open snapshot store: %w", err)
		}
		sessionStore = snapStore
	} else {
		sessionStore = store.NewMemoryStore()
	}

	permits, err := permit.New(&permit.Config{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to create permit registry: %w", err)
	}
	defer permits.Close()

	limiter, err := ratelimit.New(&ratelimit.Config{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to create rate limiter: %w", err)
	}

	recorder, closeRecorder, err := newRecorder(log, cfg)
	if err != nil {
		return err
	}
	defer closeRecorder()

	var coord *coordinator.Coordinator
	socketHub, err := hub.New(&hub.Config{
		Logger: log,
		OnDetach: func(sessionID, userID string) {
			coord.HandleDisconnect(sessionID, userID)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create socket hub: %w", err)
	}

	coord, err = coordinator.New(&coordinator.Config{
		Logger:   log,
		Store:    sessionStore,
		Hub:      socketHub,
		Permits:  permits,
		Limiter:  limiter,
		Recorder: recorder,
		Machines: activity.NewMachines(content.Default()),
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	defer coord.Close()

	authn, err := auth.New(cfg.AuthSecret)
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}

	srv, err := server.New(&server.Config{
		Logger:      log,
		Addr:        cfg.ListenAddr,
		Coordinator: coord,
		Hub:         socketHub,
		Auth:        authn,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	go coord.RunJanitor(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("context cancelled, shutting down")
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func newRecorder(log *slog.Logger, cfg Config) (stats.Recorder, func(), error) {
	if cfg.StatsEndpoint == "" {
		return &stats.LogRecorder{Logger: log}, func() {}, nil
	}
	httpRec, err := stats.NewHTTPRecorder(&stats.HTTPRecorderConfig{
		Logger:   log,
		Endpoint: cfg.StatsEndpoint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create stats recorder: %w", err)
	}
	asyncRec, err := stats.NewAsyncRecorder(&stats.AsyncRecorderConfig{
		Logger: log,
		Inner:  httpRec,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create async stats recorder: %w", err)
	}
	return asyncRec, asyncRec.Close, nil
}

type Config struct {
	ShowVersion bool
	Verbose     bool
	EnablePprof bool
	MetricsAddr string

	ListenAddr    string
	AuthSecret    string
	SnapshotDir   string
	StatsEndpoint string
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	flag.BoolVar(&cfg.ShowVersion, "version", false, "show version and exit")
	flag.BoolVar(&cfg.Verbose, "verbose", getenvBool("ARCADE_VERBOSE", false), "verbose mode - show debug logs (env: ARCADE_VERBOSE)")
	flag.BoolVar(&cfg.EnablePprof, "enable-pprof", false, "enable pprof server")

	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", getenv("ARCADE_METRICS_ADDR", defaultMetricsAddr), "address to listen on for prometheus metrics (env: ARCADE_METRICS_ADDR)")
	flag.StringVar(&cfg.ListenAddr, "listen-addr", getenv("ARCADE_LISTEN_ADDR", defaultListenAddr), "address to listen on for the activities API (env: ARCADE_LISTEN_ADDR)")
	flag.StringVar(&cfg.AuthSecret, "auth-secret", getenv("ARCADE_AUTH_SECRET", ""), "shared bearer secret (env: ARCADE_AUTH_SECRET)")
	flag.StringVar(&cfg.SnapshotDir, "snapshot-dir", getenv("ARCADE_SNAPSHOT_DIR", ""), "directory for session snapshots; empty disables durability (env: ARCADE_SNAPSHOT_DIR)")
	flag.StringVar(&cfg.StatsEndpoint, "stats-endpoint", getenv("ARCADE_STATS_ENDPOINT", ""), "stats sidecar URL; empty logs outcomes instead (env: ARCADE_STATS_ENDPOINT)")

	flag.Parse()

	if cfg.ShowVersion {
		return cfg, nil
	}
	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("auth secret is empty (set ARCADE_AUTH_SECRET or --auth-secret)")
	}
	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
