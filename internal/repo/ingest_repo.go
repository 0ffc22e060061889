// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists the ingestion schedule: the last run
// per software name, which decides when a name is due for another search.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-deals-backend/internal/domain"
)

// SaveIngestRun records the outcome of an ingestion run for run.SoftwareName,
// replacing any earlier record.
func SaveIngestRun(ctx context.Context, db *gorm.DB, run *domain.IngestRun) error {
	if run.LastRunAt.IsZero() {
		run.LastRunAt = time.Now().UTC()
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "software_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_run_at", "status", "deal_id", "message"}),
		}).
		Create(run).Error
}

// GetIngestRun returns the record for name or ErrNotFound.
func GetIngestRun(ctx context.Context, db *gorm.DB, name string) (*domain.IngestRun, error) {
	var run domain.IngestRun
	if err := db.WithContext(ctx).Where("software_name = ?", name).Take(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// IngestDue reports whether name has never been ingested or was last
// ingested before cutoff.
func IngestDue(ctx context.Context, db *gorm.DB, name string, cutoff time.Time) (bool, error) {
	run, err := GetIngestRun(ctx, db, name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return run.LastRunAt.Before(cutoff), nil
}

// ListDealNames returns the distinct software names in the catalogue, by id.
func ListDealNames(ctx context.Context, db *gorm.DB) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).
		Model(&domain.Deal{}).
		Order("id ASC").
		Pluck("software_name", &names).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		k := CategoryKey(n)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, n)
	}
	return out, nil
}
