package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/Prathaban-G/ecommerce/internal/platform/requestctx"
)

const (
	cloudTraceHeader = "X-Cloud-Trace-Context"
	tracerName       = "github.com/Prathaban-G/ecommerce/internal/platform/observability"
)

// Span attributes recorded for viewer session traffic.
const (
	AttrSessionID = attribute.Key("storefront.session_id")
	AttrStream    = attribute.Key("storefront.stream")
)

// TraceMiddleware continues the caller's Cloud Trace context and opens a server
// span per request. Once chi has routed the request the span is renamed after
// the route pattern, so every session shares one span name per endpoint.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return traceMiddleware(otel.GetTracerProvider().Tracer(tracerName), projectID)
}

func traceMiddleware(tracer trace.Tracer, projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if remote, ok := parseCloudTraceContext(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, remote)
			}

			ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(sessionAttributes(r)...),
			)
			defer span.End()

			sc := span.SpanContext()
			info := requestctx.TraceInfo{
				TraceID:   sc.TraceID().String(),
				SpanID:    sc.SpanID().String(),
				Sampled:   sc.IsSampled(),
				ProjectID: projectID,
			}
			if sc.IsValid() {
				w.Header().Set(cloudTraceHeader, formatCloudTraceHeader(sc))
			}

			recorder := newResponseRecorder(w)
			r = r.WithContext(requestctx.WithTrace(ctx, info))
			next.ServeHTTP(recorder, r)

			route := SanitizeRoute(routePattern(r))
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				semconv.HTTPRoute(route),
				semconv.HTTPResponseStatusCode(recorder.Status()),
			)
			if recorder.Status() >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(recorder.Status()))
			}
		})
	}
}

func sessionAttributes(r *http.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{semconv.HTTPRequestMethodKey.String(SanitizeMethod(r.Method))}
	if id := sessionIDFromRequest(r); id != "" {
		attrs = append(attrs, AttrSessionID.String(id))
	}
	if isUpgrade(r) {
		attrs = append(attrs, AttrStream.Bool(true))
	}
	return attrs
}

// parseCloudTraceContext reads TRACE_ID/SPAN_ID;o=OPTIONS, where the trace id
// is 32 hex digits and the span id is a decimal uint64.
func parseCloudTraceContext(header string) (trace.SpanContext, bool) {
	traceHex, rest, found := strings.Cut(strings.TrimSpace(header), "/")
	if !found {
		return trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(traceHex)
	if err != nil {
		return trace.SpanContext{}, false
	}
	spanPart, options, _ := strings.Cut(rest, ";")
	raw, err := strconv.ParseUint(strings.TrimSpace(spanPart), 10, 64)
	if err != nil || raw == 0 {
		return trace.SpanContext{}, false
	}
	var spanID trace.SpanID
	for i := len(spanID) - 1; i >= 0; i-- {
		spanID[i] = byte(raw)
		raw >>= 8
	}

	var flags trace.TraceFlags
	if strings.TrimSpace(options) == "o=1" {
		flags = trace.FlagsSampled
	}
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	}), true
}

func formatCloudTraceHeader(sc trace.SpanContext) string {
	id := sc.SpanID()
	var raw uint64
	for _, b := range id {
		raw = raw<<8 | uint64(b)
	}
	option := 0
	if sc.IsSampled() {
		option = 1
	}
	return fmt.Sprintf("%s/%d;o=%d", sc.TraceID(), raw, option)
}
