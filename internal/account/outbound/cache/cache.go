// Package cache stores accounts as JSON documents in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/hash"
	"github.com/shandysiswandi/idgate/internal/pkg/instrument"
	"github.com/shandysiswandi/idgate/internal/pkg/mfa"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxWatchRetries bounds optimistic transaction retries on contention.
const maxWatchRetries = 5

type document struct {
	ID          int64     `json:"id"`
	IdentityKey string    `json:"identity_key"`
	TOTPSecret  string    `json:"totp_secret"`
	TOTPEnabled bool      `json:"totp_enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Cache is a Redis backed account store. Keys are HMAC digests of the
// identity key and secrets are sealed before they are written.
type Cache struct {
	client redis.UniversalClient
	prefix string
	hmac   hash.Hash
	enc    mfa.Encryptor
	ins    instrument.Instrumentation
}

func NewCache(client redis.UniversalClient, prefix string, h hash.Hash, enc mfa.Encryptor, ins instrument.Instrumentation) *Cache {
	return &Cache{
		client: client,
		prefix: prefix + "account:",
		hmac:   h,
		enc:    enc,
		ins:    ins,
	}
}

func (c *Cache) GetAccount(ctx context.Context, identityKey string) (_ *entity.Account, err error) {
	ctx, span := c.startSpan(ctx, "GetAccount")
	defer func() { c.endSpan(span, err) }()

	key, err := c.key(identityKey)
	if err != nil {
		return nil, err
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, c.mapError(err)
	}

	return c.decode(raw)
}

// CreateAccountIfAbsent writes acc with SET NX. When the key is taken the
// stored document is returned instead.
func (c *Cache) CreateAccountIfAbsent(ctx context.Context, acc entity.Account) (_ *entity.Account, err error) {
	ctx, span := c.startSpan(ctx, "CreateAccountIfAbsent")
	defer func() { c.endSpan(span, err) }()

	key, err := c.key(acc.IdentityKey)
	if err != nil {
		return nil, err
	}

	raw, err := c.encode(acc)
	if err != nil {
		return nil, err
	}

	ok, err := c.client.SetNX(ctx, key, raw, 0).Result()
	if err != nil {
		return nil, err
	}
	if ok {
		return &acc, nil
	}

	existing, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, c.mapError(err)
	}

	return c.decode(existing)
}

// UpdateAccountTOTP rewrites the document under WATCH so a concurrent
// writer of the same key forces a retry.
func (c *Cache) UpdateAccountTOTP(ctx context.Context, identityKey, secret string, enabled bool, at time.Time) (_ *entity.Account, err error) {
	ctx, span := c.startSpan(ctx, "UpdateAccountTOTP")
	defer func() { c.endSpan(span, err) }()

	key, err := c.key(identityKey)
	if err != nil {
		return nil, err
	}

	var updated *entity.Account
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return c.mapError(err)
		}

		acc, err := c.decode(raw)
		if err != nil {
			return err
		}

		acc.TOTPSecret = secret
		acc.TOTPEnabled = enabled
		acc.UpdatedAt = at

		out, err := c.encode(*acc)
		if err != nil {
			return err
		}

		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		}); err != nil {
			return err
		}

		updated = acc
		return nil
	}

	for range maxWatchRetries {
		err = c.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (c *Cache) key(identityKey string) (string, error) {
	digest, err := c.hmac.Hash(identityKey)
	if err != nil {
		return "", err
	}
	return c.prefix + string(digest), nil
}

func (c *Cache) encode(acc entity.Account) ([]byte, error) {
	sealed, err := mfa.SealString(c.enc, acc.TOTPSecret, mfa.TOTPScope(acc.ID))
	if err != nil {
		return nil, err
	}

	return json.Marshal(document{
		ID:          acc.ID,
		IdentityKey: acc.IdentityKey,
		TOTPSecret:  sealed,
		TOTPEnabled: acc.TOTPEnabled,
		CreatedAt:   acc.CreatedAt,
		UpdatedAt:   acc.UpdatedAt,
	})
}

func (c *Cache) decode(raw []byte) (*entity.Account, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	secret, err := mfa.OpenString(c.enc, doc.TOTPSecret, mfa.TOTPScope(doc.ID))
	if err != nil {
		return nil, err
	}

	return &entity.Account{
		ID:          doc.ID,
		IdentityKey: doc.IdentityKey,
		TOTPSecret:  secret,
		TOTPEnabled: doc.TOTPEnabled,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}, nil
}

func (c *Cache) mapError(err error) error {
	if errors.Is(err, redis.Nil) {
		return goerror.ErrNotFound
	}
	return err
}

func (c *Cache) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return c.ins.Tracer("account.outbound.cache").Start(ctx, name)
}

func (c *Cache) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
