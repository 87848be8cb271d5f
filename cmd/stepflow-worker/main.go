// Stepflow Worker — исполняет runs, поставленные в очередь.
//
// Worker:
//   - получает события run.pending из RabbitMQ
//   - дополнительно опрашивает БД на случай потерянных событий
//   - исполняет шаги workflow и сохраняет результат run
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/Stepflow/internal/config"
	"github.com/shaiso/Stepflow/internal/llm"
	"github.com/shaiso/Stepflow/internal/mq"
	"github.com/shaiso/Stepflow/internal/repo"
	"github.com/shaiso/Stepflow/internal/runner"
	"github.com/shaiso/Stepflow/internal/steps"
	"github.com/shaiso/Stepflow/internal/telemetry"
	"github.com/shaiso/Stepflow/internal/worker"
)

func main() {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "stepflow-worker",
		Short:         "Stepflow run worker",
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting stepflow-worker", "config_file", cfg.File)

	if cfg.LLM.Token == "" {
		logger.Warn("LLM token is not set (HF_API_TOKEN); LLM steps will fail")
	}

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

	// Без RabbitMQ worker работает только через polling
	var mqConn *mq.Connection
	if conn, err := mq.NewConnection(cfg.RabbitMQ.URL, "stepflow-worker", logger); err != nil {
		logger.Warn("RabbitMQ not available, falling back to polling", "error", err)
	} else {
		mqConn = conn
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			return fmt.Errorf("setup topology: %w", err)
		}
		logger.Debug("rabbitmq topology declared", "topology", mq.TopologyInfo())
	}

	completer := llm.NewClient(cfg.LLMConfig())
	registry := steps.DefaultRegistry(completer, &http.Client{Timeout: cfg.Runner.FetchTimeout})

	service := runner.NewService(runner.ServiceConfig{
		Runner: runner.New(registry, runner.Options{
			DefaultTimeout: cfg.Runner.StepTimeout,
			Logger:         logger,
		}),
		Workflows: workflowRepo,
		Runs:      runRepo,
		Logger:    logger,
	})

	w := worker.New(worker.Config{
		Executor:     service,
		Pending:      runRepo,
		Conn:         mqConn,
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		Prefetch:     cfg.Worker.Prefetch,
		Logger:       logger,
	})
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	// Health и metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		if w.IsStopped() {
			http.Error(rw, "stopped", http.StatusServiceUnavailable)
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(rw, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
		if mqConn != nil && !mqConn.IsConnected() {
			// polling продолжает работать, поэтому не 503
			_, _ = rw.Write([]byte("ok (amqp reconnecting)"))
			return
		}
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := config.Addr(cfg.Worker.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	w.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("stopped")
	return nil
}
