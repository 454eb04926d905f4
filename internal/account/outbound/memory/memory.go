// Package memory keeps accounts in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shandysiswandi/idgate/internal/account/entity"
	"github.com/shandysiswandi/idgate/internal/pkg/goerror"
	"github.com/shandysiswandi/idgate/internal/pkg/keylock"
)

// Store is an in-memory account store. Writes to one identity key are
// serialized by a per-key lock; different keys never share one.
type Store struct {
	locks keylock.Locker

	mu       sync.RWMutex
	accounts map[string]entity.Account
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]entity.Account)}
}

func (s *Store) GetAccount(ctx context.Context, identityKey string) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acc, ok := s.load(identityKey)
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &acc, nil
}

func (s *Store) CreateAccountIfAbsent(ctx context.Context, acc entity.Account) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(acc.IdentityKey)
	defer unlock()

	if existing, ok := s.load(acc.IdentityKey); ok {
		return &existing, nil
	}

	s.mu.Lock()
	s.accounts[acc.IdentityKey] = acc
	s.mu.Unlock()

	return &acc, nil
}

func (s *Store) UpdateAccountTOTP(ctx context.Context, identityKey, secret string, enabled bool, at time.Time) (*entity.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(identityKey)
	defer unlock()

	acc, ok := s.load(identityKey)
	if !ok {
		return nil, goerror.ErrNotFound
	}

	acc.TOTPSecret = secret
	acc.TOTPEnabled = enabled
	acc.UpdatedAt = at

	s.mu.Lock()
	s.accounts[identityKey] = acc
	s.mu.Unlock()

	return &acc, nil
}

// Len reports the number of stored accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

func (s *Store) load(identityKey string) (entity.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[identityKey]
	return acc, ok
}
