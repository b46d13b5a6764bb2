package command

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/diskcache-go/internal/config"
	"github.com/yndnr/diskcache-go/internal/core/service"
	"github.com/yndnr/diskcache-go/internal/infra/confloader"
	"github.com/yndnr/diskcache-go/internal/infra/shutdown"
	"github.com/yndnr/diskcache-go/internal/infra/tlsroots"
	"github.com/yndnr/diskcache-go/internal/server/httpserver"
	"github.com/yndnr/diskcache-go/internal/telemetry/logger"
	"github.com/yndnr/diskcache-go/internal/telemetry/metric"
)

// DefaultShutdownTimeout bounds the shutdown hooks of serve.
const DefaultShutdownTimeout = 30 * time.Second

// ServeCommand returns the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Hold the cache open and expose metrics",
		Description: "Opens the store, serves /healthz, /readyz, /metrics and /v1/stats, " +
			"sweeps expired entries periodically and applies log.level and " +
			"cache.max_size when the configuration file changes.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Listen address (overrides metrics.addr)",
			},
			&cli.IntFlag{
				Name:  "rate-limit",
				Usage: "Requests per second per client; 0 disables",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload the configuration file when it changes",
				Value: true,
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "Time allowed for graceful shutdown",
				Value: DefaultShutdownTimeout,
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := configFrom(c)
	if err != nil {
		return err
	}
	log := loggerFrom(c)

	reg := metric.NewRegistry()
	svc, closeCache, err := openCache(c, reg)
	if err != nil {
		return err
	}
	if err := reg.Register(metric.NewCollector(svc.Store())); err != nil {
		_ = closeCache()
		return fmt.Errorf("register collector: %w", err)
	}

	addr := cfg.Metrics.Addr
	if c.IsSet("metrics-addr") {
		addr = c.String("metrics-addr")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		_ = closeCache()
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	h := shutdown.NewHandler(c.Duration("shutdown-timeout"))

	if cfg.Metrics.TLSEnabled() {
		tlsCfg, certs, err := serverTLS(cfg.Metrics, log.Component("tls"))
		if err != nil {
			ln.Close()
			_ = closeCache()
			return err
		}
		h.OnShutdown("certificates", func(context.Context) error { return certs.Stop() })
		certs.StartAsync()
		ln = tls.NewListener(ln, tlsCfg)
	}

	srv := httpserver.New(ln.Addr().String(), httpserver.NewRouter(&httpserver.RouterConfig{
		Store:     svc.Store(),
		Metrics:   reg,
		Logger:    log.Component("http").Slog(),
		RateLimit: c.Int("rate-limit"),
	}))

	// Hooks run in reverse: HTTP first, the store last.
	h.OnShutdown("cache", func(context.Context) error {
		log.Info("closing cache")
		return closeCache()
	})

	purgeCtx, stopPurge := context.WithCancel(context.Background())
	h.OnShutdown("purge", func(context.Context) error {
		stopPurge()
		return nil
	})
	if cfg.Cache.PurgeInterval > 0 {
		go purgeLoop(purgeCtx, svc, cfg.Cache.PurgeInterval, log.Component("purge"))
	}

	if path := c.String("config"); path != "" && c.Bool("watch") {
		w, err := watchConfig(path, overridesFrom(c), svc, log.Component("config"))
		if err != nil {
			log.Warn("configuration watch disabled", "path", path, "error", err)
		} else {
			h.OnShutdown("watcher", func(context.Context) error { return w.Stop() })
		}
	}

	h.OnShutdown("http", func(ctx context.Context) error {
		log.Info("stopping HTTP listener")
		return srv.Shutdown(ctx)
	})

	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Error("HTTP server error", "error", err)
			h.Trigger()
		}
	}()

	st := svc.Store().Stats()
	log.Info("serving",
		"addr", srv.Addr(),
		"dir", st.Dir,
		"entries", st.Entries,
		"size", st.Size,
		"max_size", st.MaxSize,
		"encrypted", cfg.EncryptionEnabled(),
		"tls", cfg.Metrics.TLSEnabled())

	if err := h.Wait(c.Context); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("stopped")
	return nil
}

// serverTLS loads the listener certificate and, if configured, the client
// CA pool.
func serverTLS(m config.MetricsSection, log logger.Logger) (*tls.Config, *tlsroots.Watcher, error) {
	var clientCAs *tlsroots.Pool
	if m.TLSClientCA != "" {
		pool, err := tlsroots.LoadPool(m.TLSClientCA)
		if err != nil {
			return nil, nil, fmt.Errorf("metrics.tls_client_ca: %w", err)
		}
		clientCAs = pool
	}

	certs, err := tlsroots.NewWatcher(m.TLSCertFile, m.TLSKeyFile, tlsroots.WithLogger(log.Slog()))
	if err != nil {
		return nil, nil, err
	}
	return tlsroots.ServerConfig(certs, clientCAs), certs, nil
}

// purgeLoop sweeps expired entries until ctx ends.
func purgeLoop(ctx context.Context, svc *service.CacheService, every time.Duration, log logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			opCtx := logger.WithOperationID(logger.WithLogger(ctx, log), ulid.Make().String())
			if n := svc.PurgeExpired(); n > 0 {
				logger.L(opCtx).Info("expired entries purged", "count", n)
			}
		}
	}
}

// watchConfig reapplies the reloadable settings when path changes.
func watchConfig(path string, overrides map[string]any, svc *service.CacheService, log logger.Logger) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}

	w.OnChange(func(string) {
		applyReload(path, overrides, svc, log)
	})
	w.StartAsync()
	return w, nil
}

// applyReload loads path again and applies log.level and cache.max_size.
// Other settings need a restart.
func applyReload(path string, overrides map[string]any, svc *service.CacheService, log logger.Logger) {
	cfg, err := config.Load(path, overrides)
	if err != nil {
		log.Warn("configuration reload rejected", "path", path, "error", err)
		return
	}

	if cfg.Log.Level != logger.GetLevel() {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			log.Warn("log level not applied", "error", err)
		} else {
			log.Info("log level changed", "level", logger.GetLevel())
		}
	}

	n, err := cfg.MaxSizeBytes()
	if err != nil {
		log.Warn("configuration reload rejected", "path", path, "error", err)
		return
	}
	if err := svc.Store().SetMaxSize(n); err != nil {
		log.Warn("max size not applied", "error", err)
	}
}
