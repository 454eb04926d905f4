package event

import "time"

const AccountCreatedDestination string = "account_created"

type AccountCreatedMessage struct {
	AccountID   int64     `json:"account_id"`
	IdentityKey string    `json:"identity_key"`
	CreatedAt   time.Time `json:"created_at"`
}
