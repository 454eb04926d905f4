package mfa

import "strconv"

// Purpose identifies what the sealed material is used for.
type Purpose string

const (
	// PurposeTOTPSecret scopes encryption to TOTP shared secrets.
	PurposeTOTPSecret Purpose = "totp_secret"
)

// Scope binds a ciphertext to an owner. It is used as the AES-GCM AAD.
type Scope struct {
	// AccountID is the numeric account identifier.
	AccountID int64
	// Purpose is the encryption purpose.
	Purpose Purpose
}

// TOTPScope returns the scope for an account's TOTP secret.
func TOTPScope(accountID int64) Scope {
	return Scope{AccountID: accountID, Purpose: PurposeTOTPSecret}
}

func (s Scope) canonical() string {
	return "account=" + strconv.FormatInt(s.AccountID, 10) + "\npurpose=" + string(s.Purpose) + "\n"
}
