package entity

import (
	"errors"

	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
)

// Sentinels for errors.Is across layers.
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrInvalidCode          = errors.New("invalid totp code")
	ErrIdentityTokenInvalid = errors.New("identity token invalid")
	ErrStorageUnavailable   = errors.New("storage unavailable")
)

// NewAccountNotFound is returned when no account exists for the identity key.
func NewAccountNotFound() error {
	return goerror.NewBusinessCause("Account not found", goerror.CodeNotFound, ErrAccountNotFound)
}

// NewInvalidCode is returned when a TOTP code does not verify.
func NewInvalidCode() error {
	return goerror.NewBusinessCause("Invalid TOTP code", goerror.CodeUnauthorized, ErrInvalidCode)
}

// NewIdentityTokenInvalid carries the verifier's reason in the message.
func NewIdentityTokenInvalid(reason error) error {
	msg := "Identity token invalid"
	if reason != nil {
		msg += ": " + reason.Error()
	}
	return goerror.NewBusinessCause(msg, goerror.CodeUnauthorized, ErrIdentityTokenInvalid)
}

// NewStorageUnavailable wraps a backing store failure.
func NewStorageUnavailable(cause error) error {
	return goerror.NewUnavailable("Storage unavailable", errors.Join(ErrStorageUnavailable, cause))
}
