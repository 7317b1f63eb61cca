package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"expenses/internal/amqp"
	"expenses/internal/backend"
	"expenses/internal/core"
	apphttp "expenses/internal/http"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/services"
	"expenses/internal/worker"
)

// amqpConnectAttempts bounds the startup dial; the API runs without events
// when the broker stays unreachable.
const amqpConnectAttempts = 5

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.serve(cmd.Context())
		},
	}
}

func (rt *runtime) serve(ctx context.Context) error {
	cfg, logger := rt.cfg, rt.logger

	store, err := rt.openServeStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()

	var publisher services.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpConnectAttempts)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events disabled",
				log.FieldComponent, log.ComponentAMQP, log.FieldError, err.Error())
		} else {
			publisher = client
			logger.Info("AMQP connected", log.FieldComponent, log.ComponentAMQP,
				"exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	statistics := services.NewStatisticsService(store, services.CacheConfig{
		Size: cfg.StatsCacheSize,
		TTL:  cfg.StatsCacheTTL,
	}, m)
	expenses := services.NewExpenseService(store, publisher, statistics, m)
	defer expenses.Close()

	cacheWorker, err := worker.NewCacheWorker(statistics)
	if err != nil {
		return fmt.Errorf("create cache worker: %w", err)
	}
	cacheWorker.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cacheWorker.Stop(stopCtx); err != nil {
			logger.Warn("Cache worker did not stop in time", log.FieldComponent, log.ComponentWorker, log.FieldError, err.Error())
		}
	}()

	srv := apphttp.NewServer(apphttp.Config{
		Addr:         ":" + cfg.Port,
		AppName:      cfg.AppName,
		Development:  cfg.IsDevelopment(),
		CORSOrigins:  cfg.CORSOrigins,
		RateLimitRPM: cfg.RateLimitRPM,
	}, apphttp.Dependencies{
		Expenses:   expenses,
		Statistics: statistics,
		Store:      store,
		Logger:     logger.WithComponent(log.ComponentHTTP),
		Metrics:    m,
	})

	logger.Info("Starting expenses API",
		"port", cfg.Port,
		"env", cfg.AppEnv,
		"backend", cfg.DataBackend,
		"events", publisher != nil,
		"version", Version)

	if err := srv.Run(ctx, cfg.ShutdownTimeout); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("Server stopped gracefully")
	return nil
}

// openServeStore opens the configured backend. The memory backend starts
// empty on every run, so it is filled with the demo data.
func (rt *runtime) openServeStore(ctx context.Context) (backend.Store, error) {
	store, err := rt.openStore()
	if err != nil {
		return nil, err
	}
	if backend.BackendType(rt.cfg.DataBackend) != backend.MemoryBackend {
		return store, nil
	}

	res, err := seedDemoData(ctx, store, core.DateOf(time.Now().UTC()))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("seed memory backend: %w", err)
	}
	rt.logger.Info("Memory backend seeded with demo data",
		log.FieldComponent, log.ComponentBackend,
		"users", res.Users,
		"expenses", res.Expenses)
	return store, nil
}
