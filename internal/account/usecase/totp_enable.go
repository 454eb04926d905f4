package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/otp"
)

type TOTPEnableInput struct {
	IdentityKey string `validate:"required,max=320"`
}

type TOTPEnableOutput struct {
	Secret          string
	ProvisioningURI string
	QRCode          string
}

// TOTPEnable generates a new secret, stores it with the flag set and returns
// what an authenticator app needs. Enabling again replaces the secret.
func (s *Usecase) TOTPEnable(ctx context.Context, in TOTPEnableInput) (*TOTPEnableOutput, error) {
	ctx, span := s.startSpan(ctx, "TOTPEnable")
	defer span.End()

	in.IdentityKey = entity.NormalizeIdentityKey(in.IdentityKey)
	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "identity_key", in.IdentityKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	uri, err := s.totp.ProvisioningURI(secret, in.IdentityKey)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build provisioning uri", "identity_key", in.IdentityKey, "error", err)
		return nil, goerror.NewServer(err)
	}

	acc, err := s.repoDB.UpdateAccountTOTP(ctx, in.IdentityKey, secret, true, s.clock.Now())
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found", "identity_key", in.IdentityKey)
		return nil, entity.NewAccountNotFound()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo update account totp", "identity_key", in.IdentityKey, "error", err)
		return nil, entity.NewStorageUnavailable(err)
	}

	qr, err := otp.QRCodePNG(uri, otp.DefaultQRSize)
	if err != nil {
		slog.WarnContext(ctx, "failed to render provisioning qr code", "identity_key", in.IdentityKey, "error", err)
	}

	slog.InfoContext(ctx, "totp enabled", "identity_key", acc.IdentityKey, "account_id", acc.ID)
	s.publish(ctx, "account_totp_enabled", func(ctx context.Context) error {
		return s.repoMessaging.PublishTOTPEnabled(ctx, TOTPEnabledEvent{
			AccountID:   acc.ID,
			IdentityKey: acc.IdentityKey,
			EnabledAt:   acc.UpdatedAt,
		})
	})

	return &TOTPEnableOutput{
		Secret:          secret,
		ProvisioningURI: uri,
		QRCode:          qr,
	}, nil
}
