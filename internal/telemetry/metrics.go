package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики сервисов Stepflow. Регистрируются в prometheus.DefaultRegisterer
// и отдаются на /metrics каждого бинарника.
var (
	// HTTPRequestsTotal — запросы к API по маршруту и статусу.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepflow_api_http_requests_total",
		Help: "Total HTTP requests handled by stepflow-api",
	}, []string{"method", "route", "status"})

	// WorkflowRunsTotal — завершённые запуски workflow по статусу.
	WorkflowRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepflow_workflow_runs_total",
		Help: "Total workflow runs by final status",
	}, []string{"status"})

	// StepsTotal — выполненные шаги по типу и статусу.
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepflow_steps_total",
		Help: "Total executed steps by type and status",
	}, []string{"type", "status"})

	// StepDuration — длительность выполнения шага.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stepflow_step_duration_seconds",
		Help:    "Step execution duration",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"type"})

	// LLMRequestsTotal — запросы к chat completion API по результату.
	LLMRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stepflow_llm_requests_total",
		Help: "Total chat completion requests by outcome",
	}, []string{"outcome"})

	// LLMRequestDuration — длительность запросов к chat completion API.
	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stepflow_llm_request_duration_seconds",
		Help:    "Chat completion request duration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	// ScheduledRunsTotal — runs, созданные планировщиком.
	ScheduledRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stepflow_scheduler_runs_created_total",
		Help: "Total runs created by the scheduler",
	})
)
