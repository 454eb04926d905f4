package router

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/uid"
)

const (
	// HeaderCorrelationID carries the id echoed on every response.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is read when a proxy in front sets it instead.
	HeaderRequestID = "X-Request-ID"

	maxCorrelationIDLen = 128
)

// inboundIDHeaders are tried in order before an id is generated.
var inboundIDHeaders = [...]string{HeaderCorrelationID, HeaderRequestID}

// normalizeCID returns "" for values that are blank or carry control characters.
func normalizeCID(v string) string {
	v = strings.TrimSpace(v)
	if strings.IndexFunc(v, unicode.IsControl) != -1 {
		return ""
	}
	if len(v) > maxCorrelationIDLen {
		v = v[:maxCorrelationIDLen]
	}
	return v
}

func correlationIDFor(r *http.Request, gen uid.StringID) string {
	for _, name := range inboundIDHeaders {
		if cid := normalizeCID(r.Header.Get(name)); cid != "" {
			return cid
		}
	}
	if gen == nil {
		return ""
	}
	return gen.Generate()
}

// middlewareCorrelationID tags the request context with one id, so the access
// log, handler logs and account events published for the request share it.
func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cid := correlationIDFor(r, gen); cid != "" {
				w.Header().Set(HeaderCorrelationID, cid)
				r = r.WithContext(instrument.SetCorrelationID(r.Context(), cid))
			}
			next.ServeHTTP(w, r)
		})
	}
}
