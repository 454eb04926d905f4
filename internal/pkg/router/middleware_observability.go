package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/idgate/internal/pkg/config"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// maxLoggedBodyBytes bounds how much of a request body is buffered for logs.
const maxLoggedBodyBytes = 8 * 1024

// sensitiveHeaders are masked regardless of instrument.log_mask_fields.
var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"cookie":        {},
}

// responseWriter tracks what a handler wrote. Response bodies are never
// captured: they carry TOTP secrets and provisioning URIs.
type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *responseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

// SetError is called by the endpoint wrapper with the handler error.
func (w *responseWriter) SetError(err error) { w.err = err }

func (w *responseWriter) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func routeOf(r *http.Request) string {
	if pattern := httprouter.ParamsFromContext(r.Context()).MatchedRoutePath(); pattern != "" {
		return pattern
	}
	return r.URL.Path
}

func headersForLog(h http.Header, maskKeys map[string]struct{}) map[string]string {
	out := make(map[string]string, len(h))
	for key := range h {
		lower := strings.ToLower(key)
		_, sensitive := sensitiveHeaders[lower]
		_, masked := maskKeys[lower]
		if sensitive || masked {
			out[key] = "***"
			continue
		}
		out[key] = h.Get(key)
	}
	return out
}

// peekJSONBody returns the masked JSON request body and restores r.Body so
// the handler still reads it from the start. Non JSON bodies are skipped.
func peekJSONBody(r *http.Request, maskKeys map[string]struct{}) any {
	if r.Body == nil || !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return nil
	}

	//nolint:errcheck // logging only
	head, _ := io.ReadAll(io.LimitReader(r.Body, maxLoggedBodyBytes+1))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))

	if len(head) > maxLoggedBodyBytes {
		return "<body too large>"
	}

	var body any
	if err := json.Unmarshal(head, &body); err != nil {
		return nil
	}
	return instrument.MaskData(body, maskKeys)
}

type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter) httpMetrics {
	var m httpMetrics
	var err error

	if m.requests, err = meter.Int64Counter("http.server.request.count",
		metric.WithDescription("HTTP requests served")); err != nil {
		slog.Error("failed to create http request counter", "error", err)
	}

	if m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request latency"), metric.WithUnit("s")); err != nil {
		slog.Error("failed to create http duration histogram", "error", err)
	}

	return m
}

func (m httpMetrics) record(ctx context.Context, elapsed time.Duration, attrs []attribute.KeyValue) {
	opt := metric.WithAttributes(attrs...)
	if m.requests != nil {
		m.requests.Add(ctx, 1, opt)
	}
	if m.duration != nil {
		m.duration.Record(ctx, elapsed.Seconds(), opt)
	}
}

func logLevelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// middlewareObservability opens a server span per request, records request
// metrics and writes one access log line when the handler returns.
func middlewareObservability(cfg config.Config, ins instrument.Instrumentation) Middleware {
	maskKeys := map[string]struct{}{}
	if cfg != nil {
		maskKeys = instrument.MaskKeys(cfg.GetArray("instrument.log_mask_fields"))
	}

	tracer := ins.Tracer("http.server")
	metrics := newHTTPMetrics(ins.Meter("http.server"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := routeOf(r)

			ctx, span := tracer.Start(r.Context(), r.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.HTTPRouteKey.String(route),
					semconv.ServerAddressKey.String(r.Host),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			body := peekJSONBody(r, maskKeys)

			rw := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(rw, r.WithContext(ctx))

			status := rw.statusCode()
			elapsed := time.Since(start)
			attrs := []attribute.KeyValue{
				semconv.HTTPRequestMethodKey.String(r.Method),
				semconv.HTTPRouteKey.String(route),
				semconv.HTTPResponseStatusCodeKey.Int(status),
			}
			span.SetAttributes(attrs...)

			if rw.err != nil {
				span.RecordError(rw.err)
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			metrics.record(ctx, elapsed, attrs)

			args := []any{
				"method", r.Method,
				"path", route,
				"status", status,
				"bytes", rw.bytes,
				"latency_ms", elapsed.Milliseconds(),
				"client_ip", r.RemoteAddr,
				"headers", headersForLog(r.Header, maskKeys),
			}
			if body != nil {
				args = append(args, "body", body)
			}
			if rw.err != nil {
				args = append(args, "error", rw.err)
			}
			slog.Log(ctx, logLevelFor(status), "http request", args...)
		})
	}
}
