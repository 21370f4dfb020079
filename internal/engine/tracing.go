// Tracing instrumentation for the engine.
package engine

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/taskmill/taskmill/internal/state"
)

// startRunSpan starts a span covering one engine run.
func startRunSpan(ctx context.Context, sessionID, goal string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "session.run")
	span.SetAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("session.goal", goal),
	)
	return ctx, span
}

// endRunSpan ends the run span with the terminal phase.
func endRunSpan(span trace.Span, phase state.Phase, err error) {
	span.SetAttributes(attribute.String("session.phase", string(phase)))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// startNodeSpan starts a span for one phase transition.
func startNodeSpan(ctx context.Context, node string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "phase."+node)
	span.SetAttributes(attribute.String("phase.node", node))
	return ctx, span
}

// endNodeSpan ends a phase span.
func endNodeSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
