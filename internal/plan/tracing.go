// Tracing instrumentation for the plan engine.
package plan

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startPlanSpan starts a span covering one plan run.
func startPlanSpan(ctx context.Context, steps, tasks int) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "plan.run")
	span.SetAttributes(
		attribute.Int("plan.steps", steps),
		attribute.Int("plan.tasks", tasks),
	)
	return ctx, span
}

// startStepSpan starts a span for one step of the plan.
func startStepSpan(ctx context.Context, index, size int) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "plan.step")
	span.SetAttributes(
		attribute.Int("step.index", index),
		attribute.Int("step.tasks", size),
		attribute.Bool("step.concurrent", size > 1),
	)
	return ctx, span
}

// startPhaseSpan starts a span for one task phase (refine/tools/evaluate).
func startPhaseSpan(ctx context.Context, phase, taskName string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "task."+phase)
	span.SetAttributes(attribute.String("task.name", taskName))
	return ctx, span
}

// endSpan records an error, if any, and ends the span.
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
