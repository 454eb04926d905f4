package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const maskedValue = "***"

func initLogging(cfg *Config, lp *sdklog.LoggerProvider) {
	slog.SetDefault(slog.New(newLogHandler(os.Stdout, cfg, lp)))
}

func newLogHandler(w io.Writer, cfg *Config, lp *sdklog.LoggerProvider) slog.Handler {
	level := parseLevel(cfg.LogLevel)

	var stdout slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		stdout = tint.NewHandler(w, &tint.Options{Level: level, AddSource: true})
	} else {
		stdout = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			AddSource:   true,
			ReplaceAttr: replaceJSONAttr,
		})
	}

	handler := stdout
	if lp != nil {
		handler = &fanoutHandler{handlers: []slog.Handler{
			stdout,
			otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp)),
		}}
	}

	return &contextHandler{
		Handler:     &maskHandler{handler: handler, maskKeys: buildMaskKeys(cfg.MaskFields)},
		serviceName: cfg.ServiceName,
	}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func replaceJSONAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
	case slog.LevelKey:
		a.Key = "severity"
	case slog.SourceKey:
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		_, rel, found := strings.Cut(src.File, "/internal/")
		if !found {
			return slog.Attr{}
		}
		return slog.String("file", fmt.Sprintf("%s:%d", filepath.Join("internal", rel), src.Line))
	}
	return a
}

// contextHandler stamps every record with the service name and the request
// correlation id when one is present.
type contextHandler struct {
	slog.Handler
	serviceName string
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if cID := GetCorrelationID(ctx); cID != "" {
		r.AddAttrs(slog.String("_cID", cID))
	}
	if h.serviceName != "" {
		r.AddAttrs(slog.String("service", h.serviceName))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), serviceName: h.serviceName}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), serviceName: h.serviceName}
}

type fanoutHandler struct {
	handlers []slog.Handler
}

func (m *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: out}
}

func (m *fanoutHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: out}
}

// maskHandler replaces the values of sensitive attributes (TOTP secrets,
// identity tokens, codes) before they reach any sink.
type maskHandler struct {
	handler  slog.Handler
	maskKeys map[string]struct{}
}

func (h *maskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *maskHandler) Handle(ctx context.Context, record slog.Record) error {
	if len(h.maskKeys) == 0 {
		return h.handler.Handle(ctx, record)
	}

	masked := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		masked.AddAttrs(maskAttr(attr, h.maskKeys))
		return true
	})

	return h.handler.Handle(ctx, masked)
}

func (h *maskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a, h.maskKeys)
	}
	return &maskHandler{handler: h.handler.WithAttrs(masked), maskKeys: h.maskKeys}
}

func (h *maskHandler) WithGroup(name string) slog.Handler {
	return &maskHandler{handler: h.handler.WithGroup(name), maskKeys: h.maskKeys}
}

func buildMaskKeys(fields []string) map[string]struct{} {
	keys := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(strings.ToLower(field))
		if field != "" {
			keys[field] = struct{}{}
		}
	}
	return keys
}

func maskAttr(attr slog.Attr, maskKeys map[string]struct{}) slog.Attr {
	if _, found := maskKeys[strings.ToLower(attr.Key)]; found {
		return slog.String(attr.Key, maskedValue)
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		masked := make([]slog.Attr, len(group))
		for i, ga := range group {
			masked[i] = maskAttr(ga, maskKeys)
		}
		attr.Value = slog.GroupValue(masked...)
	case slog.KindString:
		if masked, ok := maskJSON([]byte(attr.Value.String()), maskKeys); ok {
			attr.Value = slog.StringValue(masked)
		}
	case slog.KindAny:
		switch v := attr.Value.Any().(type) {
		case map[string]any, []any:
			attr.Value = slog.AnyValue(MaskData(v, maskKeys))
		case map[string]string:
			converted := make(map[string]any, len(v))
			for k, v2 := range v {
				converted[k] = v2
			}
			attr.Value = slog.AnyValue(MaskData(converted, maskKeys))
		case []byte:
			if masked, ok := maskJSON(v, maskKeys); ok {
				attr.Value = slog.StringValue(masked)
			}
		}
	}

	return attr
}

func maskJSON(payload []byte, maskKeys map[string]struct{}) (string, bool) {
	if len(payload) == 0 || (payload[0] != '{' && payload[0] != '[') {
		return "", false
	}

	var body any
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", false
	}

	out, err := json.Marshal(MaskData(body, maskKeys))
	if err != nil {
		return "", false
	}
	return string(out), true
}

// MaskData walks decoded JSON and replaces values under any key in maskKeys.
// Keys in maskKeys must be lower case.
func MaskData(v any, maskKeys map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		masked := make(map[string]any, len(val))
		for k, v2 := range val {
			if _, found := maskKeys[strings.ToLower(k)]; found {
				masked[k] = maskedValue
			} else {
				masked[k] = MaskData(v2, maskKeys)
			}
		}
		return masked
	case []any:
		res := make([]any, len(val))
		for i, v2 := range val {
			res[i] = MaskData(v2, maskKeys)
		}
		return res
	default:
		return v
	}
}

// MaskKeys normalizes a field list into the lookup set used by MaskData.
func MaskKeys(fields []string) map[string]struct{} {
	return buildMaskKeys(fields)
}
