package app

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/idgate/internal/pkg/clock"
	"github.com/shandysiswandi/idgate/internal/pkg/config"
	"github.com/shandysiswandi/idgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/idgate/internal/pkg/hash"
	"github.com/shandysiswandi/idgate/internal/pkg/idtoken"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/messaging"
	"github.com/shandysiswandi/idgate/internal/pkg/mfa"
	"github.com/shandysiswandi/idgate/internal/pkg/otp"
	"github.com/shandysiswandi/idgate/internal/pkg/replay"
	"github.com/shandysiswandi/idgate/internal/pkg/router"
	"github.com/shandysiswandi/idgate/internal/pkg/uid"
	"github.com/shandysiswandi/idgate/internal/pkg/validator"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine    *goroutine.Manager
	validator    validator.Validator
	clock        clock.Clocker
	hmac         hash.Hash
	uid          uid.NumberID
	uuid         uid.StringID
	totp         otp.OTP
	mfaEncryptor mfa.Encryptor

	// resources
	dbConn    *pgxpool.Pool
	cacheConn redis.UniversalClient
	verifier  idtoken.Verifier
	jwks      *idtoken.JWKS
	messaging messaging.Publisher
	replay    replay.Guard

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initDatabase()
	app.initCache()
	app.initVerifier()
	app.initMessaging()
	app.initReplay()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
