package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/jonesrussell/prospect-discovery/internal/api"
	"github.com/jonesrussell/prospect-discovery/internal/cache"
	"github.com/jonesrussell/prospect-discovery/internal/config"
	"github.com/jonesrussell/prospect-discovery/internal/discovery"
	"github.com/jonesrussell/prospect-discovery/internal/extract"
	"github.com/jonesrussell/prospect-discovery/internal/logger"
	"github.com/jonesrussell/prospect-discovery/internal/quota"
	"github.com/jonesrussell/prospect-discovery/internal/telemetry"
	"github.com/jonesrussell/prospect-discovery/internal/websets"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the prospect discovery HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	path := cfgFile
	if path == "" {
		path = config.GetConfigPath("config.yml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if debug {
		cfg.Service.Debug = true
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Configuration loaded",
		logger.String("service", cfg.Service.Name),
		logger.String("version", cfg.Service.Version),
		logger.Int("port", cfg.Service.Port),
		logger.String("cache_backend", cfg.Cache.Backend),
	)

	metrics := telemetry.NewMetrics()
	tracer := otel.Tracer(cfg.Service.Name)

	store, err := buildStore(cfg)
	if err != nil {
		return err
	}

	websetsClient := websets.NewClient(websets.Config{
		BaseURL: cfg.Websets.BaseURL,
		APIKey:  cfg.Websets.APIKey,
		Timeout: cfg.Websets.Timeout,
	})
	if checkErr := websetsClient.CheckConfig(); checkErr != nil {
		log.Warn("Search provider not fully configured; submissions will fail",
			logger.Error(checkErr),
		)
	}

	quotaClient := quota.NewClient(cfg.Quota.URL, cfg.Quota.Timeout)
	if !quotaClient.Enabled() {
		log.Info("Quota precheck disabled (no quota service URL configured)")
	}

	reuser := discovery.NewReuser(websetsClient, store, metrics, log)
	submitter := discovery.NewSubmitter(websetsClient, discovery.SubmitterConfig{
		MaxCriteria:    cfg.Discovery.MaxCriteria,
		MaxEnrichments: cfg.Discovery.MaxEnrichments,
		MinCount:       cfg.Discovery.MinTargetCount,
		MaxCount:       cfg.Discovery.MaxTargetCount,
	}, log)
	engine := discovery.NewEngine(websetsClient, extract.New(), store, metrics, log, tracer, discovery.EngineConfig{
		PollInterval:        cfg.Discovery.PollInterval,
		MaxTicks:            cfg.Discovery.MaxTicks,
		MaxConsecutiveFails: cfg.Discovery.MaxConsecutiveFails,
		PageLimit:           cfg.Websets.PageLimit,
	})
	service := discovery.NewService(store, quotaClient, reuser, submitter, engine, metrics, log)

	handler := api.NewHandler(service, log)
	router := api.NewRouter(cfg, handler, metrics, log)
	server := api.NewServer(cfg, router, log)

	return server.RunWithGracefulShutdown(rootCmd.Context(), service.Shutdown)
}

// buildStore selects the fingerprint cache backend.
func buildStore(cfg *config.Config) (cache.Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
		})
		return cache.NewRedisStore(client, cfg.Cache.TTL), nil
	case "memory":
		return cache.NewMemoryStore(cfg.Cache.MaxEntries, cfg.Cache.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}
