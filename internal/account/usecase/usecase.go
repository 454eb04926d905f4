package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/clock"
	"github.com/shandysiswandi/idgate/internal/pkg/config"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/idgate/internal/pkg/idtoken"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/otp"
	"github.com/shandysiswandi/idgate/internal/pkg/replay"
	"github.com/shandysiswandi/idgate/internal/pkg/uid"
	"github.com/shandysiswandi/idgate/internal/pkg/validator"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type AccountCreatedEvent struct {
	AccountID   int64
	IdentityKey string
	CreatedAt   time.Time
}

type TOTPEnabledEvent struct {
	AccountID   int64
	IdentityKey string
	EnabledAt   time.Time
}

type repoMessaging interface {
	PublishAccountCreated(ctx context.Context, msg AccountCreatedEvent) error
	PublishTOTPEnabled(ctx context.Context, msg TOTPEnabledEvent) error
}

// RepoDB is the account store.
type RepoDB interface {
	// GetAccount returns goerror.ErrNotFound when no account exists.
	GetAccount(ctx context.Context, identityKey string) (*entity.Account, error)
	// CreateAccountIfAbsent stores acc unless the key is taken and returns
	// the stored record. An existing record always wins.
	CreateAccountIfAbsent(ctx context.Context, acc entity.Account) (*entity.Account, error)
	// UpdateAccountTOTP overwrites the secret and flag, or returns
	// goerror.ErrNotFound.
	UpdateAccountTOTP(ctx context.Context, identityKey, secret string, enabled bool, at time.Time) (*entity.Account, error)
}

type Usecase struct {
	repoDB        RepoDB
	repoMessaging repoMessaging
	validator     validator.Validator
	cfg           config.Config
	uid           uid.NumberID
	totp          otp.OTP
	clock         clock.Clocker
	verifier      idtoken.Verifier
	replay        replay.Guard
	ins           instrument.Instrumentation
	goroutine     goroutine.Runner

	verifications metric.Int64Counter
}

type Dependency struct {
	RepoDB        RepoDB
	RepoMessaging repoMessaging
	Validator     validator.Validator
	Config        config.Config
	UID           uid.NumberID
	Totp          otp.OTP
	Clock         clock.Clocker
	Verifier      idtoken.Verifier
	Replay        replay.Guard
	Instrument    instrument.Instrumentation
	Goroutine     goroutine.Runner
}

func New(dep Dependency) *Usecase {
	verifications, err := dep.Instrument.Meter("account.usecase").Int64Counter(
		"account.totp.verifications",
		metric.WithDescription("TOTP verification attempts by outcome"),
	)
	if err != nil {
		slog.Warn("failed to create totp verification counter", "error", err)
	}

	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		validator:     dep.Validator,
		cfg:           dep.Config,
		uid:           dep.UID,
		totp:          dep.Totp,
		clock:         dep.Clock,
		verifier:      dep.Verifier,
		replay:        dep.Replay,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
		verifications: verifications,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("account.usecase").Start(ctx, name)
}

// getAccount maps store errors onto the account error kinds.
func (s *Usecase) getAccount(ctx context.Context, key string) (*entity.Account, error) {
	acc, err := s.repoDB.GetAccount(ctx, key)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found", "identity_key", key)
		return nil, entity.NewAccountNotFound()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account", "identity_key", key, "error", err)
		return nil, entity.NewStorageUnavailable(err)
	}

	return acc, nil
}

// publish runs fn after the response is decided. Failures are only logged.
func (s *Usecase) publish(ctx context.Context, name string, fn func(ctx context.Context) error) {
	if s.repoMessaging == nil || s.goroutine == nil {
		return
	}

	s.goroutine.Go(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			slog.WarnContext(ctx, "failed to publish account event", "event", name, "error", err)
		}
		return nil
	})
}

func (s *Usecase) countVerification(ctx context.Context, outcome string) {
	if s.verifications == nil {
		return
	}
	s.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
