package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/repo"
)

// DefaultIdempotencyTTL is used when IdempotencyService.TTL is zero.
const DefaultIdempotencyTTL = 24 * time.Hour

// IdempotencyService remembers which keyed writes already happened so a
// retried related-like is answered without counting again. Records are scoped
// by client and route and expire after TTL.
type IdempotencyService struct {
	DB  *gorm.DB
	TTL time.Duration
}

func (s *IdempotencyService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultIdempotencyTTL
	}
	return s.TTL
}

// Exists reports whether a live record exists at now. Its signature is the
// lookup hook of the HTTP idempotency middleware.
func (s *IdempotencyService) Exists(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error) {
	_, err := repo.LiveIdempotency(ctx, s.DB, repo.IdemKey{ClientID: clientID, Scope: scope, Key: key}, now)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repo.ErrNotFound):
		return false, nil
	}
	return false, translate("idempotency.Exists", "idempotency record", err)
}

// Save records the outcome of a keyed write. When a concurrent request with
// the same key got there first its outcome stands and Save returns nil.
func (s *IdempotencyService) Save(ctx context.Context, clientID, scope, key string, status int, body string) error {
	k := repo.IdemKey{ClientID: clientID, Scope: scope, Key: key}
	err := repo.SaveIdempotency(ctx, s.DB, k, status, body, time.Now().UTC(), s.ttl())
	if err == nil || errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return translate("idempotency.Save", "idempotency record", err)
}

// Purge deletes expired records and returns how many were removed.
func (s *IdempotencyService) Purge(ctx context.Context) (int64, error) {
	n, err := repo.PurgeIdempotency(ctx, s.DB, time.Now().UTC())
	if err != nil {
		return 0, translate("idempotency.Purge", "idempotency record", err)
	}
	return n, nil
}
