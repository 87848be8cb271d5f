// Stepflow Scheduler — создаёт runs по расписаниям.
//
// Scheduler:
//   - раз в interval выбирает due schedules
//   - ставит run в очередь (idempotency key = schedule + due time)
//   - сдвигает next_due_at по cron или интервалу
//
// Тики выполняет только лидер (pg_advisory_lock), поэтому
// можно запускать несколько экземпляров.
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
	"github.com/shaiso/Stepflow/internal/mq"
	"github.com/shaiso/Stepflow/internal/repo"
	"github.com/shaiso/Stepflow/internal/runner"
	"github.com/shaiso/Stepflow/internal/scheduler"
	"github.com/shaiso/Stepflow/internal/telemetry"
)

func main() {
	var cfgFile string

	cmd := &cobra.Command{
		Use:           "stepflow-scheduler",
		Short:         "Stepflow schedule processor",
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
	logger.Info("starting stepflow-scheduler", "config_file", cfg.File, "interval", cfg.Scheduler.Interval)

	pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := repo.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	logger.Info("connected to database")

	// Scheduler только ставит runs в очередь, шаги не исполняет
	svcCfg := runner.ServiceConfig{
		Workflows: repo.NewWorkflowRepo(pool),
		Runs:      repo.NewRunRepo(pool),
		Logger:    logger,
	}
	mqConn, err := mq.NewConnection(cfg.RabbitMQ.URL, "stepflow-scheduler", logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, runs will be picked up by worker polling", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		svcCfg.Publisher = mq.NewPublisher(mqConn, logger)
	}

	sched := scheduler.New(scheduler.Config{
		Schedules: repo.NewScheduleRepo(pool),
		Enqueuer:  runner.NewService(svcCfg),
		Logger:    logger,
		BatchSize: cfg.Scheduler.BatchSize,
	})

	// Health и metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := config.Addr(cfg.Scheduler.Port)
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

	// Блокируется до отмены ctx
	sched.Loop(ctx, cfg.Scheduler.Interval, scheduler.NewAdvisoryLock(pool, cfg.Scheduler.LockKey))
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("stopped")
	return nil
}
