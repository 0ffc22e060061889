package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// ErrDuplicate reports a unique-key collision.
var ErrDuplicate = errors.New("duplicate")

// IsDuplicate reports whether err is a unique-constraint violation. With
// TranslateError off, drivers only say so in the message text.
func IsDuplicate(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrDuplicate), errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"unique constraint failed", "constraint failed: unique", "duplicate key"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IdemKey addresses one idempotency record: a client reusing a key on a
// route.
type IdemKey struct {
	ClientID string
	Scope    string
	Key      string
}

func (k IdemKey) valid() bool { return strings.TrimSpace(k.Key) != "" }

// LiveIdempotency returns the record for k that is still valid at now.
func LiveIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, now time.Time) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"client_id": k.ClientID, "scope": k.Scope, "key": k.Key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotency records the outcome of the first request made with k.
//
// A live record for k is never overwritten: the call returns ErrDuplicate and
// the earlier outcome stands. An expired record is replaced in place, so a
// key can be reused once its window has passed even before a purge.
func SaveIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, status int, body string, now time.Time, ttl time.Duration) error {
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		ClientID:  k.ClientID,
		Scope:     k.Scope,
		Key:       k.Key,
		Status:    status,
		Body:      body,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "scope"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "body", "created_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: rec.TableName() + ".expires_at <= ?", Vars: []any{now}},
		}},
	}).Create(rec)
	switch {
	case res.Error != nil && IsDuplicate(res.Error):
		return ErrDuplicate
	case res.Error != nil:
		return res.Error
	case res.RowsAffected == 0:
		return ErrDuplicate
	}
	return nil
}

// PurgeIdempotency deletes records that expired at or before now.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
