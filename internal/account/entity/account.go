package entity

import (
	"strings"
	"time"
)

// Account is the one record kept per identity key.
type Account struct {
	ID          int64
	IdentityKey string
	TOTPSecret  string
	TOTPEnabled bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NormalizeIdentityKey trims and lowercases key. Every operation applies it
// before touching storage.
func NormalizeIdentityKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// TOTPState is the second-factor state of an account.
type TOTPState int8

const (
	TOTPStateDisabled TOTPState = iota
	TOTPStateEnabled
)

func (s TOTPState) String() string {
	if s == TOTPStateEnabled {
		return "enabled"
	}
	return "disabled"
}

// State reports the account TOTP state.
func (a Account) State() TOTPState {
	if a.TOTPEnabled {
		return TOTPStateEnabled
	}
	return TOTPStateDisabled
}
