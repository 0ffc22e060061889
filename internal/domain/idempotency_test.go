package domain

import (
	"testing"
	"time"
)

func TestIdempotency_KeyedByClientScopeAndKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if !db.Migrator().HasIndex(&Idempotency{}, "ux_client_scope_key") {
		t.Fatalf("missing ux_client_scope_key")
	}

	at := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	row := func(id, client, scope, key string) *Idempotency {
		return &Idempotency{ID: id, ClientID: client, Scope: scope, Key: key,
			Status: 200, Body: "{}", CreatedAt: at, ExpiresAt: at.Add(time.Hour)}
	}

	cases := []struct {
		rec     *Idempotency
		wantErr bool
	}{
		{row("a", "192.0.2.1", "/api/deal/:ref/like", "k"), false},
		{row("b", "192.0.2.1", "/api/deal/:ref/like", "k"), true},
		{row("c", "192.0.2.2", "/api/deal/:ref/like", "k"), false},
		{row("d", "192.0.2.1", "/api/deal/:ref/unlike", "k"), false},
		{row("e", "192.0.2.1", "/api/deal/:ref/like", "k2"), false},
	}
	for _, tc := range cases {
		err := db.Create(tc.rec).Error
		if (err != nil) != tc.wantErr {
			t.Fatalf("insert %s: err = %v, wantErr %v", tc.rec.ID, err, tc.wantErr)
		}
	}

	var n int64
	db.Model(&Idempotency{}).Count(&n)
	if n != 4 {
		t.Fatalf("rows = %d, want 4", n)
	}
	if got := (Idempotency{}).TableName(); got != "idempotency" {
		t.Fatalf("TableName = %q", got)
	}
}
