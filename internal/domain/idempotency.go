package domain

import "time"

// Idempotency is the remembered outcome of a keyed write. A retry carrying
// the same Idempotency-Key from the same client on the same route is
// answered from this row and does not repeat the write.
type Idempotency struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	ClientID  string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_client_scope_key,priority:1"`
	Scope     string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_client_scope_key,priority:2"`
	Key       string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_client_scope_key,priority:3"`
	Status    int       `gorm:"not null"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (Idempotency) TableName() string { return "idempotency" }
