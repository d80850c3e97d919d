// Package observability defines the interfaces and attribute names used for
// tracing, metrics and structured logging across devchat.
//
// The orchestrator stores the active [Provider] and [Span] in the request
// [context.Context] with [ContextWithObserver] and [ContextWithSpan]; provider
// clients and HTTP helpers read them back with [ObserverFromContext] and
// [SpanFromContext] and stay silent when none is present.
//
// semconv.go lists the attribute, span, event and metric names.
package observability
