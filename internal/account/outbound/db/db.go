package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/mfa"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const accountColumns = `id, identity_key, totp_secret, totp_enabled, created_at, updated_at`

type DB struct {
	conn *pgxpool.Pool
	enc  mfa.Encryptor
	ins  instrument.Instrumentation
}

func NewDB(conn *pgxpool.Pool, enc mfa.Encryptor, ins instrument.Instrumentation) *DB {
	return &DB{
		conn: conn,
		enc:  enc,
		ins:  ins,
	}
}

// - 23505 unique violation → goerror.ErrConflict
// - anything else is passed through and surfaces as storage unavailable
func (s *DB) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return goerror.ErrConflict
	}

	return err
}

func (s *DB) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("account.outbound.db").Start(ctx, name)
}

func (s *DB) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// scanAccount reads one row selected with accountColumns and opens the
// sealed secret.
func (s *DB) scanAccount(row pgx.Row) (*entity.Account, error) {
	var (
		acc    entity.Account
		sealed string
	)
	if err := row.Scan(&acc.ID, &acc.IdentityKey, &sealed, &acc.TOTPEnabled, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		return nil, s.mapError(err)
	}

	secret, err := mfa.OpenString(s.enc, sealed, mfa.TOTPScope(acc.ID))
	if err != nil {
		return nil, err
	}
	acc.TOTPSecret = secret

	return &acc, nil
}
