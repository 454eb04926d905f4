package idtoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTokenInvalid is matched by every verification failure.
var ErrTokenInvalid = errors.New("identity token invalid")

var (
	// ErrTokenExpired is returned for tokens past exp.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
	// ErrNoIdentityKey is returned when a valid token has no email claim.
	ErrNoIdentityKey = fmt.Errorf("%w: no email claim", ErrTokenInvalid)
	// ErrEmptyToken is returned for blank input.
	ErrEmptyToken = fmt.Errorf("%w: empty", ErrTokenInvalid)
)

// Identity is what a verified token asserts.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Issuer        string
}

// Verifier turns an opaque token into a verified Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

func normalizeToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}

func identityFrom(sub, email string, verified bool, iss string) (Identity, error) {
	if strings.TrimSpace(email) == "" {
		return Identity{}, ErrNoIdentityKey
	}
	return Identity{Subject: sub, Email: email, EmailVerified: verified, Issuer: iss}, nil
}

func invalid(reason error) error {
	if errors.Is(reason, ErrTokenInvalid) {
		return reason
	}
	return fmt.Errorf("%w: %w", ErrTokenInvalid, reason)
}
