package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/idgate/internal/account/inbound"
	"github.com/shandysiswandi/idgate/internal/account/outbound/cache"
	"github.com/shandysiswandi/idgate/internal/account/outbound/db"
	"github.com/shandysiswandi/idgate/internal/account/outbound/memory"
	"github.com/shandysiswandi/idgate/internal/account/outbound/mq"
	"github.com/shandysiswandi/idgate/internal/account/usecase"
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

// Storage drivers accepted by storage.driver.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

var (
	ErrUnknownStorage = errors.New("account: unknown storage driver")
	ErrMissingConn    = errors.New("account: storage driver requires a connection")
)

type Dependency struct {
	// DBConn and CacheConn are only required by the matching storage driver.
	DBConn    *pgxpool.Pool
	CacheConn redis.UniversalClient

	Goroutine    *goroutine.Manager         `validate:"required"`
	Router       *router.Router             `validate:"required"`
	Messaging    messaging.Publisher        `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	UID          uid.NumberID               `validate:"required"`
	HMAC         hash.Hash                  `validate:"required"`
	MFAEncryptor mfa.Encryptor              `validate:"required"`
	Clock        clock.Clocker              `validate:"required"`
	Totp         otp.OTP                    `validate:"required"`
	Verifier     idtoken.Verifier           `validate:"required"`
	Replay       replay.Guard               `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repo, err := newRepoDB(dep)
	if err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoDB:        repo,
		RepoMessaging: mq.NewMessaging(dep.Messaging, dep.Instrument),
		Validator:     dep.Validator,
		Config:        dep.Config,
		UID:           dep.UID,
		Totp:          dep.Totp,
		Clock:         dep.Clock,
		Verifier:      dep.Verifier,
		Replay:        dep.Replay,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, dep.Config.GetInt("modules.account.totp.verify_rate_limit"))

	return nil
}

func newRepoDB(dep Dependency) (usecase.RepoDB, error) {
	driver := strings.ToLower(strings.TrimSpace(dep.Config.GetString("storage.driver")))
	switch driver {
	case "", StorageMemory:
		return memory.NewStore(), nil

	case StoragePostgres:
		if dep.DBConn == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingConn, driver)
		}
		return db.NewDB(dep.DBConn, dep.MFAEncryptor, dep.Instrument), nil

	case StorageRedis:
		if dep.CacheConn == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingConn, driver)
		}
		return cache.NewCache(dep.CacheConn, dep.Config.GetString("redis.key_prefix"), dep.HMAC, dep.MFAEncryptor, dep.Instrument), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStorage, driver)
	}
}
