package db

import (
	"context"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/mfa"
)

const queryInsertAccount = `
INSERT INTO accounts (id, identity_key, totp_secret, totp_enabled, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (identity_key) DO NOTHING`

// CreateAccountIfAbsent inserts acc unless the identity key exists. A
// concurrent insert of the same key blocks on the unique index until the
// other transaction settles, so the following read sees the winner.
func (s *DB) CreateAccountIfAbsent(ctx context.Context, acc entity.Account) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "CreateAccountIfAbsent")
	defer func() { s.endSpan(span, err) }()

	sealed, err := mfa.SealString(s.enc, acc.TOTPSecret, mfa.TOTPScope(acc.ID))
	if err != nil {
		return nil, err
	}

	if _, err = s.conn.Exec(ctx, queryInsertAccount,
		acc.ID,
		acc.IdentityKey,
		sealed,
		acc.TOTPEnabled,
		acc.CreatedAt,
		acc.UpdatedAt,
	); err != nil {
		return nil, s.mapError(err)
	}

	return s.scanAccount(s.conn.QueryRow(ctx, queryGetAccount, acc.IdentityKey))
}
