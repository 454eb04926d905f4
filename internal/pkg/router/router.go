// Package router adapts httprouter to handlers that return a payload or an
// error, and renders both as the JSON envelopes
//
//	{"message": "...", "data": {...}}
//	{"message": "...", "error": {"field": "reason"}}
//
// Every route runs behind the recover, real IP, correlation id,
// observability and maintenance middlewares.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/idgate/internal/pkg/config"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/uid"
	"github.com/shandysiswandi/idgate/internal/pkg/validator"
)

// WelcomeMessage is served on GET /.
const WelcomeMessage = "Identity gateway with TOTP second factor"

type errorResponse struct {
	Message string            `json:"message"`
	Error   map[string]string `json:"error,omitempty"`
}

type successResponse struct {
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Handler returns a payload to encode or an error to render.
//
// A payload may implement Message() string, StatusCode() int and
// Meta() map[string]any to shape the envelope.
type Handler func(r *Request) (any, error)

// Config holds dependencies required to build a Router.
type Config struct {
	Config     config.Config
	UUID       uid.StringID
	Instrument instrument.Instrumentation
}

// Router is an http.Handler that wraps httprouter and a middleware chain.
type Router struct {
	hr  *httprouter.Router
	mws []Middleware
}

// NewRouter builds the application router with the standard middlewares and
// the GET / and GET /health routes.
func NewRouter(cfg Config) *Router {
	ins := cfg.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	hr := &httprouter.Router{
		RedirectTrailingSlash:  true,
		RedirectFixedPath:      true,
		HandleMethodNotAllowed: true,
		HandleOPTIONS:          true,
		SaveMatchedRoutePath:   true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "endpoint not found"}, http.StatusNotFound)
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, errorResponse{Message: "method not allowed"}, http.StatusMethodNotAllowed)
		}),
		PanicHandler: func(w http.ResponseWriter, r *http.Request, rvr any) {
			slog.ErrorContext(r.Context(), "panic outside middleware chain", "because", rvr)
			writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		},
	}

	ro := &Router{
		hr: hr,
		mws: []Middleware{
			middlewareRecoverer,
			middlewareIP,
			middlewareCorrelationID(cfg.UUID),
			middlewareObservability(cfg.Config, ins),
			middlewareMaintenance(cfg.Config),
		},
	}

	ro.GET("/", func(*Request) (any, error) {
		return messageOnly(WelcomeMessage), nil
	})
	ro.GET("/health", func(*Request) (any, error) {
		return messageOnly("ok"), nil
	})

	return ro
}

type messageOnly string

func (m messageOnly) Message() string { return string(m) }

func (messageOnly) MarshalJSON() ([]byte, error) { return []byte("{}"), nil }

// GET registers a GET endpoint.
func (r *Router) GET(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodGet, path, h, mws...)
}

// POST registers a POST endpoint.
func (r *Router) POST(path string, h Handler, mws ...Middleware) {
	r.endpoint(http.MethodPost, path, h, mws...)
}

// Raw registers a plain http.Handler behind the standard middlewares.
func (r *Router) Raw(method, path string, h http.Handler, mws ...Middleware) {
	r.hr.Handler(method, path, Chain(h, r.chain(mws)...))
}

func (r *Router) endpoint(method, path string, h Handler, mws ...Middleware) {
	r.hr.Handler(method, path, Chain(http.HandlerFunc(func(w http.ResponseWriter, re *http.Request) {
		resp, err := h(&Request{Request: re})
		if err != nil {
			if setter, ok := w.(interface{ SetError(error) }); ok {
				setter.SetError(err)
			}
			writeError(re.Context(), w, err)
			return
		}
		writeSuccess(w, resp)
	}), r.chain(mws)...))
}

func (r *Router) chain(extra []Middleware) []Middleware {
	out := make([]Middleware, 0, len(r.mws)+len(extra))
	out = append(out, r.mws...)
	return append(out, extra...)
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.hr.ServeHTTP(w, req)
}

// WriteError renders err with the error envelope. It is meant for plain
// middlewares that reject a request before any Handler runs.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(r.Context(), w, err)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		slog.ErrorContext(ctx, "unhandled error reached the router", "error", err)
		writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		return
	}

	resp := errorResponse{Message: gerr.Msg()}

	var verr validator.V10ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Values()
	} else if len(gerr.Fields()) > 0 {
		resp.Error = gerr.Fields()
	}

	writeJSON(w, resp, gerr.StatusCode())
}

func writeSuccess(w http.ResponseWriter, resp any) {
	code := http.StatusOK
	if sc, ok := resp.(interface{ StatusCode() int }); ok {
		code = sc.StatusCode()
	}

	if code == http.StatusNoContent || resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	msg := "request has been successfully"
	if m, ok := resp.(interface{ Message() string }); ok {
		msg = m.Message()
	}

	var meta map[string]any
	if m, ok := resp.(interface{ Meta() map[string]any }); ok {
		meta = m.Meta()
	}

	writeJSON(w, successResponse{Message: msg, Data: resp, Meta: meta}, code)
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: failed to encode data to json", "error", err)
	}
}
