package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/idgate/internal/pkg/config"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/uid"
	"github.com/shandysiswandi/idgate/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type greeting struct {
	Name string `json:"name"`
}

func (greeting) Message() string { return "hello" }

func newTestRouter(t *testing.T, yaml string) *Router {
	t.Helper()

	var cfg config.Config
	if yaml != "" {
		c, err := config.NewViperFromBytes("yaml", []byte(yaml))
		require.NoError(t, err)
		cfg = c
	}

	return NewRouter(Config{Config: cfg, UUID: fixedID("cid-fixed"), Instrument: instrument.NewNoop()})
}

func serve(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRouter_WelcomeAndHealth(t *testing.T) {
	r := newTestRouter(t, "")

	rec := serve(r, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, WelcomeMessage, decode(t, rec)["message"])
	assert.Equal(t, "cid-fixed", rec.Header().Get(HeaderCorrelationID))

	rec = serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["message"])
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	r := newTestRouter(t, "")

	rec := serve(r, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "endpoint not found", decode(t, rec)["message"])

	rec = serve(r, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_SuccessEnvelope(t *testing.T) {
	r := newTestRouter(t, "")
	r.POST("/echo", func(req *Request) (any, error) {
		var in greeting
		if err := req.DecodeBody(&in); err != nil {
			return nil, err
		}
		return in, nil
	})

	rec := serve(r, http.MethodPost, "/echo", `{"name":"bob"}`, HeaderCorrelationID, "from-client")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "hello", body["message"])
	assert.Equal(t, map[string]any{"name": "bob"}, body["data"])
	assert.Equal(t, "from-client", rec.Header().Get(HeaderCorrelationID))

	for _, bad := range []string{"", "{", `{"name":"bob","extra":1}`, `{"name":"a"}{"name":"b"}`} {
		rec = serve(r, http.MethodPost, "/echo", bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", bad)
	}
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	r := newTestRouter(t, "")

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	r.GET("/business", func(*Request) (any, error) {
		return nil, goerror.NewBusiness("Account not found", goerror.CodeNotFound)
	})
	r.GET("/validation", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(v.Validate(struct {
			Code string `json:"code" validate:"required"`
		}{}))
	})
	r.GET("/unavailable", func(*Request) (any, error) {
		return nil, goerror.NewUnavailable("Storage unavailable", errors.New("dial tcp"))
	})
	r.GET("/raw", func(*Request) (any, error) {
		return nil, errors.New("leaky internal detail")
	})

	rec := serve(r, http.MethodGet, "/business", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Account not found", decode(t, rec)["message"])

	rec = serve(r, http.MethodGet, "/validation", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, map[string]any{"code": "code is a required field"}, decode(t, rec)["error"])

	rec = serve(r, http.MethodGet, "/unavailable", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "dial tcp")

	rec = serve(r, http.MethodGet, "/raw", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "leaky")
}

func TestRouter_RecoversPanic(t *testing.T) {
	r := newTestRouter(t, "")
	r.GET("/panic", func(*Request) (any, error) { panic("boom") })

	rec := serve(r, http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", decode(t, rec)["message"])
}

func TestRouter_Maintenance(t *testing.T) {
	r := newTestRouter(t, "app:\n  maintenance:\n    endpoints: [\"/blocked\"]\n")
	r.GET("/blocked", func(*Request) (any, error) { return greeting{}, nil })
	r.GET("/open", func(*Request) (any, error) { return greeting{}, nil })

	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodGet, "/blocked", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/open", "").Code)

	all := newTestRouter(t, "app:\n  maintenance:\n    endpoints: [\"*\"]\n")
	assert.Equal(t, http.StatusServiceUnavailable, serve(all, http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, serve(all, http.MethodGet, "/health", "").Code)
}

func TestRouter_MaintenanceVerifyTOTP(t *testing.T) {
	tests := []struct {
		name      string
		endpoints string
	}{
		{"single route", `["/auth/verify-totp"]`},
		{"everything", `["*"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, "app:\n  maintenance:\n    endpoints: "+tt.endpoints+"\n")
			called := false
			r.POST("/auth/verify-totp", func(*Request) (any, error) {
				called = true
				return greeting{}, nil
			})

			rec := serve(r, http.MethodPost, "/auth/verify-totp", `{"identity_key":"bob@example.com","code":"123456"}`)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			assert.Equal(t, "service is under maintenance", decode(t, rec)["message"])
			assert.False(t, called)

			assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/health", "").Code)
		})
	}
}

func TestRouter_RouteMiddleware(t *testing.T) {
	r := newTestRouter(t, "")

	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}
	r.GET("/mw", func(*Request) (any, error) { return greeting{}, nil }, mw("a"), mw("b"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/mw", "").Code)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"true client ip", map[string]string{"True-Client-IP": "1.1.1.1"}, "9.9.9.9:1", "1.1.1.1"},
		{"x-real-ip", map[string]string{"X-Real-IP": "2.2.2.2"}, "9.9.9.9:1", "2.2.2.2"},
		{"xff first hop", map[string]string{"X-Forwarded-For": " 3.3.3.3 , 10.0.0.1"}, "9.9.9.9:1", "3.3.3.3"},
		{"garbage header falls back", map[string]string{"X-Real-IP": "nope"}, "9.9.9.9:1", "9.9.9.9"},
		{"nothing usable", nil, "pipe", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, realIP(req))
		})
	}
}

func TestNormalizeCID(t *testing.T) {
	assert.Empty(t, normalizeCID("  "))
	assert.Empty(t, normalizeCID("a\r\nb"))
	assert.Equal(t, "abc", normalizeCID(" abc "))
	assert.Len(t, normalizeCID(strings.Repeat("x", 300)), maxCorrelationIDLen)
}

func TestCorrelationIDFor(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		gen     uid.StringID
		want    string
	}{
		{"correlation header wins", map[string]string{HeaderCorrelationID: "cid", HeaderRequestID: "rid"}, fixedID("gen"), "cid"},
		{"falls back to request id", map[string]string{HeaderCorrelationID: "bad\nid", HeaderRequestID: "rid"}, fixedID("gen"), "rid"},
		{"generated", nil, fixedID("gen"), "gen"},
		{"no generator", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, correlationIDFor(req, tt.gen))
		})
	}
}
