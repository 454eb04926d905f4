package db

import (
	"context"

	"github.com/shandysiswandi/idgate/internal/account/entity"
)

const queryGetAccount = `SELECT ` + accountColumns + ` FROM accounts WHERE identity_key = $1`

func (s *DB) GetAccount(ctx context.Context, identityKey string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccount")
	defer func() { s.endSpan(span, err) }()

	return s.scanAccount(s.conn.QueryRow(ctx, queryGetAccount, identityKey))
}
