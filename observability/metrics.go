package observability

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/BaudehloBiz/planllama-go/hooks"
	"github.com/BaudehloBiz/planllama-go/job"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/BaudehloBiz/planllama-go/observability"

// Compile-time interface checks.
var (
	_ hooks.Hook                  = (*MetricsHook)(nil)
	_ hooks.JobActive             = (*MetricsHook)(nil)
	_ hooks.JobCompleted          = (*MetricsHook)(nil)
	_ hooks.JobFailed             = (*MetricsHook)(nil)
	_ hooks.JobTimedOut           = (*MetricsHook)(nil)
	_ hooks.WorkflowStarted       = (*MetricsHook)(nil)
	_ hooks.WorkflowStepCompleted = (*MetricsHook)(nil)
	_ hooks.WorkflowStepFailed    = (*MetricsHook)(nil)
	_ hooks.WorkflowCompleted     = (*MetricsHook)(nil)
	_ hooks.WorkflowFailed        = (*MetricsHook)(nil)
	_ hooks.Reconnected           = (*MetricsHook)(nil)
)

// MetricsHook records client-wide lifecycle metrics via OpenTelemetry.
// Register it on the hook registry to automatically track job activity,
// completion counts, failure rates, timeouts, workflow executions, and
// channel reconnects.
type MetricsHook struct {
	jobActive    metric.Int64Counter
	jobCompleted metric.Int64Counter
	jobFailed    metric.Int64Counter
	jobTimedOut  metric.Int64Counter
	wfStarted    metric.Int64Counter
	wfStepDone   metric.Int64Counter
	wfStepFailed metric.Int64Counter
	wfCompleted  metric.Int64Counter
	wfFailed     metric.Int64Counter
	wfDuration   metric.Float64Histogram
	reconnects   metric.Int64Counter
}

// NewMetricsHook creates a MetricsHook using the global OTel
// MeterProvider. If no provider is configured, the instruments are
// noops and the hook costs nothing.
func NewMetricsHook() *MetricsHook {
	return NewMetricsHookWithMeter(otel.Meter(meterName))
}

// NewMetricsHookWithMeter creates a MetricsHook with the provided meter.
// Use this variant to inject a specific MeterProvider, e.g. in tests.
func NewMetricsHookWithMeter(meter metric.Meter) *MetricsHook {
	h := &MetricsHook{}

	// On error the OTel API returns noop instruments, so the hook
	// degrades gracefully.
	h.jobActive, _ = meter.Int64Counter("planllama.job.active",
		metric.WithDescription("Jobs that began executing"),
		metric.WithUnit("{job}"))
	h.jobCompleted, _ = meter.Int64Counter("planllama.job.completed",
		metric.WithDescription("Jobs that completed successfully"),
		metric.WithUnit("{job}"))
	h.jobFailed, _ = meter.Int64Counter("planllama.job.failed",
		metric.WithDescription("Jobs that failed"),
		metric.WithUnit("{job}"))
	h.jobTimedOut, _ = meter.Int64Counter("planllama.job.timed_out",
		metric.WithDescription("Jobs whose deadline fired before the handler settled"),
		metric.WithUnit("{job}"))
	h.wfStarted, _ = meter.Int64Counter("planllama.workflow.started",
		metric.WithDescription("Workflow runs that started"),
		metric.WithUnit("{run}"))
	h.wfStepDone, _ = meter.Int64Counter("planllama.workflow.step.completed",
		metric.WithDescription("Workflow steps that completed"),
		metric.WithUnit("{step}"))
	h.wfStepFailed, _ = meter.Int64Counter("planllama.workflow.step.failed",
		metric.WithDescription("Workflow steps that failed"),
		metric.WithUnit("{step}"))
	h.wfCompleted, _ = meter.Int64Counter("planllama.workflow.completed",
		metric.WithDescription("Workflow runs that completed"),
		metric.WithUnit("{run}"))
	h.wfFailed, _ = meter.Int64Counter("planllama.workflow.failed",
		metric.WithDescription("Workflow runs that failed"),
		metric.WithUnit("{run}"))
	h.wfDuration, _ = meter.Float64Histogram("planllama.workflow.duration",
		metric.WithDescription("Duration of workflow runs in seconds"),
		metric.WithUnit("s"))
	h.reconnects, _ = meter.Int64Counter("planllama.channel.reconnects",
		metric.WithDescription("Channel reconnections"),
		metric.WithUnit("{reconnect}"))

	return h
}

// Name implements hooks.Hook.
func (m *MetricsHook) Name() string { return "observability-metrics" }

func jobAttrs(j *job.Job) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("job_name", j.Name))
}

func workflowAttrs(workflow string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("workflow", workflow))
}

// ── Job lifecycle ───────────────────────────────────

// OnJobActive implements hooks.JobActive.
func (m *MetricsHook) OnJobActive(ctx context.Context, j *job.Job) error {
	m.jobActive.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements hooks.JobCompleted.
func (m *MetricsHook) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.jobCompleted.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFailed implements hooks.JobFailed.
func (m *MetricsHook) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.jobFailed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobTimedOut implements hooks.JobTimedOut.
func (m *MetricsHook) OnJobTimedOut(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.jobTimedOut.Add(ctx, 1, jobAttrs(j))
	return nil
}

// ── Workflow lifecycle ──────────────────────────────

// OnWorkflowStarted implements hooks.WorkflowStarted.
func (m *MetricsHook) OnWorkflowStarted(ctx context.Context, workflow, _ string) error {
	m.wfStarted.Add(ctx, 1, workflowAttrs(workflow))
	return nil
}

// OnWorkflowStepCompleted implements hooks.WorkflowStepCompleted.
func (m *MetricsHook) OnWorkflowStepCompleted(ctx context.Context, workflow, _, step string, _ json.RawMessage) error {
	m.wfStepDone.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("step", step),
	))
	return nil
}

// OnWorkflowStepFailed implements hooks.WorkflowStepFailed.
func (m *MetricsHook) OnWorkflowStepFailed(ctx context.Context, workflow, _, step string, _ error) error {
	m.wfStepFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("step", step),
	))
	return nil
}

// OnWorkflowCompleted implements hooks.WorkflowCompleted.
func (m *MetricsHook) OnWorkflowCompleted(ctx context.Context, workflow, _ string, elapsed time.Duration) error {
	m.wfCompleted.Add(ctx, 1, workflowAttrs(workflow))
	m.wfDuration.Record(ctx, elapsed.Seconds(), workflowAttrs(workflow))
	return nil
}

// OnWorkflowFailed implements hooks.WorkflowFailed.
func (m *MetricsHook) OnWorkflowFailed(ctx context.Context, workflow, _ string, _ error) error {
	m.wfFailed.Add(ctx, 1, workflowAttrs(workflow))
	return nil
}

// ── Channel lifecycle ───────────────────────────────

// OnReconnected implements hooks.Reconnected.
func (m *MetricsHook) OnReconnected(ctx context.Context) error {
	m.reconnects.Add(ctx, 1)
	return nil
}
