// Package otel provides OpenTelemetry span helpers shared by the orchestrator packages.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for business context used across the application.
const (
	AttrTaskID        = attribute.Key("task.id")
	AttrTaskCode      = attribute.Key("task.code")
	AttrTenantID      = attribute.Key("tenant.id")
	AttrTaskStatus    = attribute.Key("task.status")
	AttrConnectorName = attribute.Key("connector.name")
	AttrDatabaseKind  = attribute.Key("db.kind")
	AttrOperation     = attribute.Key("task.operation")
	AttrResultCount   = attribute.Key("result.count")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns the span already in ctx.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on the span and marks it failed. The status text stays generic
// so connection strings or remote payloads never end up in the span status.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
