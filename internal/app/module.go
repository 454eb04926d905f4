package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/idgate/internal/account"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.account.enabled") {
		if err := account.New(account.Dependency{
			DBConn:       a.dbConn,
			CacheConn:    a.cacheConn,
			Goroutine:    a.goroutine,
			Router:       a.router,
			Messaging:    a.messaging,
			Config:       a.config,
			Instrument:   a.ins,
			UID:          a.uid,
			HMAC:         a.hmac,
			MFAEncryptor: a.mfaEncryptor,
			Clock:        a.clock,
			Totp:         a.totp,
			Verifier:     a.verifier,
			Replay:       a.replay,
			Validator:    a.validator,
		}); err != nil {
			slog.Error("failed to init module account", "error", err)
			os.Exit(1)
		}
	}
}
