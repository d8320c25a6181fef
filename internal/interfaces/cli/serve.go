package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lokaskor/lokaskor/internal/boundary/scoring"
	"github.com/lokaskor/lokaskor/internal/config"
	"github.com/lokaskor/lokaskor/internal/domain/region"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/logging"
	"github.com/lokaskor/lokaskor/internal/infrastructure/monitoring/prometheus"
	httpiface "github.com/lokaskor/lokaskor/internal/interfaces/http"
	"github.com/lokaskor/lokaskor/internal/interfaces/http/handlers"
	"github.com/lokaskor/lokaskor/internal/interfaces/http/middleware"
	"github.com/lokaskor/lokaskor/internal/session"
)

func newServeCommand() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis engine API server",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			watchPath := ""
			if _, err := os.Stat(configPath); err == nil {
				watchPath = configPath
			}
			return RunServer(cfg, watchPath)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")
	return cmd
}

// loadConfig reads the config file, falling back to environment variables and
// defaults when the file does not exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

// RunServer wires the engine and serves until SIGINT/SIGTERM.  A non-empty
// watchPath enables config hot-reload: tuning changes apply to sessions
// created after the reload.
func RunServer(cfg *config.Config, watchPath string) error {
	log, err := logging.NewLogger(logging.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: []string{cfg.Log.Output},
	})
	if err != nil {
		return err
	}

	log.Info("starting lokaskor engine",
		logging.String("version", Version),
		logging.Int("port", cfg.Server.Port))

	metrics := prometheus.NewMetrics()

	catalog, err := region.NewCatalog(cfg.Regions.CatalogPath, log)
	if err != nil {
		return err
	}
	if cfg.Regions.WatchFile {
		if err := catalog.Watch(); err != nil {
			log.Warn("region catalog watch unavailable", logging.Err(err))
		}
	}
	defer catalog.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info("redis result cache enabled", logging.String("addr", cfg.Redis.Addr))
	}

	boundary := scoring.NewClient(scoring.Config{
		BaseURL:        cfg.Scoring.BaseURL,
		RequestTimeout: cfg.Scoring.RequestTimeout,
		MaxAttempts:    cfg.Scoring.MaxAttempts,
		RetryBackoff:   cfg.Scoring.RetryBackoff,
	}, log, metrics)

	manager := session.NewManager(session.Deps{
		Config:   cfg,
		Log:      log,
		Catalog:  catalog,
		Boundary: boundary,
		Redis:    redisClient,
		Metrics:  metrics,
	})
	defer manager.Close()

	if watchPath != "" {
		config.Watch(watchPath, func(next *config.Config) {
			manager.UpdateConfig(next)
			log.Info("configuration reloaded", logging.String("path", watchPath))
		})
	}

	gin.SetMode(ginMode(cfg.Server.Mode))
	router := httpiface.NewRouter(httpiface.RouterConfig{
		SessionHandler: handlers.NewSessionHandler(manager, log),
		HealthHandler:  handlers.NewHealthHandler(Version),
		CORS:           middleware.DefaultCORSConfig(),
		Logging:        middleware.DefaultLoggingConfig(),
		Logger:         log,
		Metrics:        metrics,
	})

	srv := httpiface.NewServer("", cfg.Server.Port, router, log)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutdown signal received", logging.String("signal", sig.String()))
	}

	if err := srv.Stop(context.Background()); err != nil {
		log.Error("shutdown failed", logging.Err(err))
		return err
	}
	log.Info("engine stopped")
	return nil
}

func ginMode(mode string) string {
	switch mode {
	case "release":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
