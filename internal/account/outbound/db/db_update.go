package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/mfa"
)

const (
	queryLockAccountID = `SELECT id FROM accounts WHERE identity_key = $1 FOR UPDATE`

	queryUpdateAccountTOTP = `
UPDATE accounts SET totp_secret = $2, totp_enabled = $3, updated_at = $4
WHERE identity_key = $1
RETURNING ` + accountColumns
)

// UpdateAccountTOTP seals the secret under the account id, which is read
// with a row lock in the same transaction.
func (s *DB) UpdateAccountTOTP(ctx context.Context, identityKey, secret string, enabled bool, at time.Time) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "UpdateAccountTOTP")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	var id int64
	if err = tx.QueryRow(ctx, queryLockAccountID, identityKey).Scan(&id); err != nil {
		return nil, s.mapError(err)
	}

	sealed, err := mfa.SealString(s.enc, secret, mfa.TOTPScope(id))
	if err != nil {
		return nil, err
	}

	acc, err := s.scanAccount(tx.QueryRow(ctx, queryUpdateAccountTOTP, identityKey, sealed, enabled, at))
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, s.mapError(err)
	}

	return acc, nil
}
