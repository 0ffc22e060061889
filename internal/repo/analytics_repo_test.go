package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

func TestRecordAnalyticsEvent_ClickIncrementsDeal(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	d := mustDeal(t, db, "Clicky")
	ip := "10.0.0.1"
	for _, action := range []string{domain.ActionClick, domain.ActionView, domain.ActionCopyCode, domain.ActionClick} {
		ev := &domain.AnalyticsEvent{DealID: d.ID, Action: action, IPAddress: &ip}
		if err := RecordAnalyticsEvent(ctx, db, ev); err != nil {
			t.Fatalf("RecordAnalyticsEvent(%s): %v", action, err)
		}
		if ev.ID == 0 || ev.Timestamp.IsZero() {
			t.Fatalf("event not populated: %+v", ev)
		}
	}

	got, _ := GetDeal(ctx, db, d.ID)
	if got.Clicks != 2 {
		t.Fatalf("clicks = %d; want 2", got.Clicks)
	}

	counts, err := CountAnalyticsByAction(ctx, db)
	if err != nil {
		t.Fatalf("CountAnalyticsByAction: %v", err)
	}
	if counts[domain.ActionClick] != 2 || counts[domain.ActionView] != 1 || counts[domain.ActionCopyCode] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestRecordAnalyticsEvent_UnknownDealStillStored(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	if err := RecordAnalyticsEvent(ctx, db, &domain.AnalyticsEvent{DealID: 404, Action: domain.ActionClick}); err != nil {
		t.Fatalf("RecordAnalyticsEvent: %v", err)
	}
	rows, err := ListRecentAnalytics(ctx, db, 10)
	if err != nil {
		t.Fatalf("ListRecentAnalytics: %v", err)
	}
	if len(rows) != 1 || rows[0].DealID != 404 || rows[0].SoftwareName != nil {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestRecordAnalyticsEvent_RejectsUnknownAction(t *testing.T) {
	db := newTestDB(t, allModels...)
	err := RecordAnalyticsEvent(context.Background(), db, &domain.AnalyticsEvent{DealID: 1, Action: "hover"})
	if err == nil {
		t.Fatalf("expected check constraint violation")
	}
}

func TestListRecentAnalytics_NewestFirstWithDeal(t *testing.T) {
	db := newTestDB(t, allModels...)
	ctx := context.Background()

	d := mustDeal(t, db, "Figma", func(d *domain.Deal) { d.Discount = "30% OFF" })
	base := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		ev := &domain.AnalyticsEvent{DealID: d.ID, Action: domain.ActionView, Timestamp: base.Add(time.Duration(i) * time.Minute)}
		if err := RecordAnalyticsEvent(ctx, db, ev); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	rows, err := ListRecentAnalytics(ctx, db, 2)
	if err != nil {
		t.Fatalf("ListRecentAnalytics: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Timestamp.Equal(base.Add(2*time.Minute)) || !rows[1].Timestamp.Equal(base.Add(time.Minute)) {
		t.Fatalf("not newest first: %v, %v", rows[0].Timestamp, rows[1].Timestamp)
	}
	if rows[0].SoftwareName == nil || *rows[0].SoftwareName != "Figma" || rows[0].Discount == nil || *rows[0].Discount != "30% OFF" {
		t.Fatalf("deal columns missing: %+v", rows[0])
	}
}
