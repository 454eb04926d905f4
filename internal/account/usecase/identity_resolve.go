package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
)

type IdentityResolveInput struct {
	Token string `validate:"required,notblank"`
}

type IdentityResolveOutput struct {
	Account entity.Account
	Created bool
}

// IdentityResolve verifies an identity token and returns the account bound
// to its email, creating it with a fresh secret on first sight.
func (s *Usecase) IdentityResolve(ctx context.Context, in IdentityResolveInput) (*IdentityResolveOutput, error) {
	ctx, span := s.startSpan(ctx, "IdentityResolve")
	defer span.End()

	in.Token = strings.TrimSpace(in.Token)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	identity, err := s.verifier.Verify(ctx, in.Token)
	if err != nil {
		slog.WarnContext(ctx, "identity token rejected", "error", err)
		return nil, entity.NewIdentityTokenInvalid(err)
	}

	return s.ResolveOrCreate(ctx, identity.Email)
}

// ResolveOrCreate returns the account for key or creates it disabled with a
// freshly generated secret. Re-resolving never touches an existing record.
func (s *Usecase) ResolveOrCreate(ctx context.Context, key string) (*IdentityResolveOutput, error) {
	ctx, span := s.startSpan(ctx, "ResolveOrCreate")
	defer span.End()

	key = entity.NormalizeIdentityKey(key)
	if key == "" {
		return nil, goerror.NewInvalidInput(nil, "identity_key", "identity_key is required")
	}

	existing, err := s.repoDB.GetAccount(ctx, key)
	if err == nil {
		return &IdentityResolveOutput{Account: *existing}, nil
	}
	if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get account", "identity_key", key, "error", err)
		return nil, entity.NewStorageUnavailable(err)
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "identity_key", key, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	candidate := entity.Account{
		ID:          s.uid.Generate(),
		IdentityKey: key,
		TOTPSecret:  secret,
		TOTPEnabled: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	acc, err := s.repoDB.CreateAccountIfAbsent(ctx, candidate)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create account", "identity_key", key, "error", err)
		return nil, entity.NewStorageUnavailable(err)
	}

	created := acc.ID == candidate.ID
	if created {
		slog.InfoContext(ctx, "account created", "identity_key", key, "account_id", acc.ID)
		s.publish(ctx, "account_created", func(ctx context.Context) error {
			return s.repoMessaging.PublishAccountCreated(ctx, AccountCreatedEvent{
				AccountID:   acc.ID,
				IdentityKey: acc.IdentityKey,
				CreatedAt:   acc.CreatedAt,
			})
		})
	}

	return &IdentityResolveOutput{Account: *acc, Created: created}, nil
}
