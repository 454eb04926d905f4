package event

import "time"

const AccountTOTPEnabledDestination string = "account_totp_enabled"

// AccountTOTPEnabledMessage never carries the secret.
type AccountTOTPEnabledMessage struct {
	AccountID   int64     `json:"account_id"`
	IdentityKey string    `json:"identity_key"`
	EnabledAt   time.Time `json:"enabled_at"`
}
