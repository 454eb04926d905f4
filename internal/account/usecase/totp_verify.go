package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"go.opentelemetry.io/otel/attribute"
)

type TOTPVerifyInput struct {
	IdentityKey string `validate:"required,max=320"`
	// Code is only looked at once the account requires TOTP.
	Code string
}

type TOTPVerifyOutput struct {
	// Required is false when the account never enabled TOTP.
	Required bool
}

func (s *Usecase) TOTPVerify(ctx context.Context, in TOTPVerifyInput) (*TOTPVerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "TOTPVerify")
	defer span.End()

	in.IdentityKey = entity.NormalizeIdentityKey(in.IdentityKey)
	in.Code = strings.TrimSpace(in.Code)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	acc, err := s.getAccount(ctx, in.IdentityKey)
	if err != nil {
		s.countVerification(ctx, "error")
		return nil, err
	}

	state := acc.State()
	span.SetAttributes(attribute.String("account.totp_state", state.String()))

	if state != entity.TOTPStateEnabled {
		s.countVerification(ctx, "not_required")
		return &TOTPVerifyOutput{Required: false}, nil
	}

	step, ok := s.totp.MatchStep(in.Code, acc.TOTPSecret, s.clock.Now())
	if !ok {
		slog.WarnContext(ctx, "totp code rejected", "identity_key", in.IdentityKey)
		s.countVerification(ctx, "invalid")
		return nil, entity.NewInvalidCode()
	}

	if s.replay != nil && s.cfg.GetBool("modules.account.totp.replay_protection") {
		first, err := s.replay.Claim(ctx, in.IdentityKey, step, s.replayTTL())
		if err != nil {
			slog.ErrorContext(ctx, "failed to claim totp step", "identity_key", in.IdentityKey, "error", err)
			s.countVerification(ctx, "error")
			return nil, entity.NewStorageUnavailable(err)
		}
		if !first {
			slog.WarnContext(ctx, "totp code reused", "identity_key", in.IdentityKey, "step", step)
			s.countVerification(ctx, "replayed")
			return nil, entity.NewInvalidCode()
		}
	}

	s.countVerification(ctx, "valid")
	return &TOTPVerifyOutput{Required: true}, nil
}

// replayTTL covers every step a code can still be accepted in.
func (s *Usecase) replayTTL() time.Duration {
	return time.Duration(2*s.totp.Skew()+1) * s.totp.Period()
}
