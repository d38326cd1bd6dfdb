package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/trydirect/stacker/internal/audit"
	"github.com/trydirect/stacker/internal/config"
	"github.com/trydirect/stacker/internal/httpserver"
	"github.com/trydirect/stacker/internal/platform"
	"github.com/trydirect/stacker/internal/telemetry"
	"github.com/trydirect/stacker/pkg/agent"
	"github.com/trydirect/stacker/pkg/authn"
	"github.com/trydirect/stacker/pkg/bus"
	"github.com/trydirect/stacker/pkg/command"
	"github.com/trydirect/stacker/pkg/connectors/registry"
	"github.com/trydirect/stacker/pkg/connectors/userservice"
	"github.com/trydirect/stacker/pkg/connectors/webhook"
	"github.com/trydirect/stacker/pkg/deployment"
	"github.com/trydirect/stacker/pkg/dispatch"
	"github.com/trydirect/stacker/pkg/health"
	"github.com/trydirect/stacker/pkg/project"
	"github.com/trydirect/stacker/pkg/rating"
	"github.com/trydirect/stacker/pkg/secrets"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, wires every domain service, and starts the mode selected
// by cfg.Mode: "api", "dispatcher", "reaper", or "consumer" each run a
// single responsibility so they can be scaled independently of one another
// (§5's single-process-many-coroutines model scales out by running more
// processes of each mode, not by adding threads to one). "migrate" applies
// the migrations and returns.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting stacker", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	if cfg.Mode == "migrate" {
		return nil
	}

	metricsReg := telemetry.NewMetricsRegistry()

	secretsClient, err := secrets.New(cfg.VaultAddress, cfg.VaultToken, cfg.VaultAgentPathPrefix, config.MustDuration(cfg.VaultTokenCacheTTL, 5*time.Second))
	if err != nil {
		return fmt.Errorf("creating secrets client: %w", err)
	}

	busClient, err := bus.New(ctx, cfg.AMQPURL, config.MustDuration(cfg.AMQPReconnectMax, 30*time.Second), logger)
	if err != nil {
		return fmt.Errorf("connecting to message bus: %w", err)
	}
	defer busClient.Close()

	auditWriter := audit.NewWriter(pool, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	// Breaking the deployment<->command value cycle: both services depend
	// on the other's write path (deployment.Teardown enqueues a destroy
	// command; command.Enqueue checks deployment ownership), so each is
	// wired against the other's Store, not its Service, wherever only a
	// store-level read is actually needed.
	deploymentStore := deployment.NewStore(pool)
	agentStore := agent.NewStore(pool)

	webhookNotifier := webhook.New()

	commandSvc := command.NewService(pool, deploymentStore, agentStore, auditWriter, logger)
	deploymentSvc := deployment.NewService(pool, busClient, secretsClient, commandSvc, agentStore, webhookNotifier, auditWriter, logger)
	agentSvc := agent.NewService(pool, deploymentStore, secretsClient, auditWriter, logger)
	projectSvc := project.NewService(pool, logger)
	ratingSvc := rating.NewService(pool, deploymentStore, logger)
	dispatcher := dispatch.NewDispatcher(pool, agentSvc, auditWriter, logger)

	registryClient := registry.New(cfg.RegistryURL, rdb, logger)
	userServiceClient := userservice.New(cfg.UserServiceURL)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, pool, rdb, metricsReg, secretsClient, busClient, agentStore,
			projectSvc, agentSvc, commandSvc, deploymentSvc, ratingSvc, dispatcher, registryClient, userServiceClient)
	case "dispatcher":
		logger.Info("dispatcher mode: liveness sweeper only (long-poll waits are served in api mode)")
		agent.RunSweeperLoop(ctx, pool, logger, config.MustDuration(cfg.HeartbeatInterval, 10*time.Second))
		return nil
	case "reaper":
		command.RunReaperLoop(ctx, pool, logger, config.MustDuration(cfg.ReapInterval, 15*time.Second))
		return nil
	case "consumer":
		return deployment.RunProgressConsumer(ctx, busClient, cfg.AMQPProgressQueue, deploymentSvc, logger)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	pool *pgxpool.Pool,
	rdb *redis.Client,
	metricsReg *prometheus.Registry,
	secretsClient *secrets.Client,
	busClient *bus.Client,
	agentStore *agent.Store,
	projectSvc *project.Service,
	agentSvc *agent.Service,
	commandSvc *command.Service,
	deploymentSvc *deployment.Service,
	ratingSvc *rating.Service,
	dispatcher *dispatch.Dispatcher,
	registryClient *registry.HTTPClient,
	userServiceClient *userservice.HTTPClient,
) error {
	userClient := authn.NewUserClient(cfg.AuthURL)
	agentAuth := &authn.AgentAuthenticator{Agents: agentStore, Secrets: secretsClient}

	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg, userClient, agentAuth)

	// Health aggregator: store and secret-store are required; registry and
	// user-service are optional external services (§4.10 — their failure
	// degrades, it never fails health).
	aggregator := health.NewAggregator(
		health.StoreComponent(pool),
		health.BusComponent(busClient),
		health.SecretStoreComponent(secretsClient),
		health.RegistryComponent(registryClient),
		health.UserServiceComponent(userServiceClient),
	)
	healthHandler := health.NewHandler(aggregator)
	srv.Router.Mount("/health_check", healthHandler.Routes())

	projectHandler := project.NewHandler(projectSvc, logger)
	srv.APIRouter.Mount("/projects", projectHandler.Routes())

	agentHandler := agent.NewHandler(agentSvc, logger)
	srv.APIRouter.Mount("/agent", agentHandler.Routes())
	srv.APIRouter.Post("/agent/heartbeat", agentHandler.HandleHeartbeat)

	commandHandler := command.NewHandler(commandSvc, logger)
	srv.APIRouter.Mount("/commands", commandHandler.Routes())

	deploymentHandler := deployment.NewHandler(deploymentSvc, logger)
	srv.APIRouter.Mount("/deployments", deploymentHandler.Routes())

	ratingHandler := rating.NewHandler(ratingSvc, logger)
	srv.APIRouter.Route("/deployments/{deployment_hash}/ratings", func(r chi.Router) {
		r.Mount("/", ratingHandler.Routes())
	})

	dispatchHandler := dispatch.NewHandler(dispatcher, config.MustDuration(cfg.LongPollWait, 30*time.Second), config.MustDuration(cfg.LongPollInterval, 2*time.Second), logger)
	srv.APIRouter.Route("/agent/commands", func(r chi.Router) {
		commandHandler.MountAgentRoutes(r)
		dispatchHandler.MountRoutes(r)
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
