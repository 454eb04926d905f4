package inbound

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/shandysiswandi/idgate/internal/account/usecase"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/router"
)

type uc interface {
	IdentityResolve(ctx context.Context, in usecase.IdentityResolveInput) (*usecase.IdentityResolveOutput, error)
	TOTPEnable(ctx context.Context, in usecase.TOTPEnableInput) (*usecase.TOTPEnableOutput, error)
	TOTPVerify(ctx context.Context, in usecase.TOTPVerifyInput) (*usecase.TOTPVerifyOutput, error)
}

// RegisterHTTPEndpoint mounts the /auth routes. verifyPerMinute caps TOTP
// verification attempts per client IP; zero or less disables the limit.
func RegisterHTTPEndpoint(r *router.Router, uc uc, verifyPerMinute int) {
	end := &HTTPEndpoint{uc: uc}

	r.POST("/auth/identity", end.Identity)
	r.POST("/auth/firebase", end.Identity) // legacy path
	r.POST("/auth/enable-totp", end.EnableTOTP)

	var mws []router.Middleware
	if verifyPerMinute > 0 {
		mws = append(mws, verifyLimiter(verifyPerMinute))
	}
	r.POST("/auth/verify-totp", end.VerifyTOTP, mws...)
}

func verifyLimiter(perMinute int) router.Middleware {
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			router.WriteError(w, r, goerror.NewBusiness("Too many verification attempts", goerror.CodeTooManyRequest))
		}),
	)
}
