// Stepflow API — HTTP сервер для управления и запуска workflow.
//
// API:
//   - CRUD workflow и schedules
//   - синхронный запуск (POST /workflows/{id}/run)
//   - постановка run в очередь для stepflow-worker
//   - /test-llm, /summarize-url, /healthz, /metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/Stepflow/internal/api"
	"github.com/shaiso/Stepflow/internal/config"
	"github.com/shaiso/Stepflow/internal/llm"
	"github.com/shaiso/Stepflow/internal/mq"
	"github.com/shaiso/Stepflow/internal/repo"
	"github.com/shaiso/Stepflow/internal/runner"
	"github.com/shaiso/Stepflow/internal/steps"
	"github.com/shaiso/Stepflow/internal/telemetry"
)

var startTime = time.Now()

func main() {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "stepflow-api",
		Short:         "Stepflow HTTP API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "Path to config file (default: ./stepflow.yaml, $STEPFLOW_CONFIG)")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting stepflow-api", "config_file", cfg.File)

	if cfg.LLM.Token == "" {
		logger.Warn("LLM token is not set (HF_API_TOKEN); LLM steps will fail")
	}

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("connected to database")

	workflowRepo := repo.NewWorkflowRepo(pool)
	runRepo := repo.NewRunRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ опционален: без него runs подхватит polling воркера
	svcCfg := runner.ServiceConfig{
		Workflows: workflowRepo,
		Runs:      runRepo,
		Logger:    logger,
	}
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, "stepflow-api", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, async runs rely on worker polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		svcCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	completer := llm.NewClient(cfg.LLMConfig())
	fetchClient := &http.Client{Timeout: cfg.Runner.FetchTimeout}
	registry := steps.DefaultRegistry(completer, fetchClient)

	svcCfg.Runner = runner.New(registry, runner.Options{
		DefaultTimeout: cfg.Runner.StepTimeout,
		Logger:         logger,
	})
	service := runner.NewService(svcCfg)

	handler := api.NewHandler(api.Config{
		Workflows:  workflowRepo,
		Runs:       runRepo,
		Schedules:  scheduleRepo,
		Runner:     service,
		Completer:  completer,
		HTTPClient: fetchClient,
		StepTypes:  registry.Types(),
		Logger:     logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	addr := config.Addr(cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	logger.Info("shutting down")
	return shutdown(server, cfg.Server.ShutdownTimeout, logger)
}

func shutdown(server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}
