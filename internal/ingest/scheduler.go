package ingest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-deals-backend/internal/domain"
	"github.com/tbourn/go-deals-backend/internal/repo"
	"github.com/tbourn/go-deals-backend/internal/services"
)

// Run outcomes recorded in ingest_runs.status and in metrics.
const (
	StatusCreated = "created"
	StatusUpdated = "updated"
	StatusFailed  = "failed"
)

var (
	ingestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_runs_total",
			Help: "Ingestion runs by outcome.",
		},
		[]string{"outcome"},
	)

	ingestStageErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_stage_errors_total",
			Help: "Failed ingestion runs by pipeline stage.",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(ingestRuns, ingestStageErrors)
}

// Runner executes one job. *Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, job Job) (*services.ApplyResult, error)
}

// Scheduler decides which names are due and runs them one after another
// with a random pause in between.
//
// A catalogue name is due when it has never been ingested or its last run is
// older than RefreshAfter. Names listed in NewSoftwareFile are due on the
// same terms and run first. A line of that file is a software name with an
// optional 1-based keyword selector, e.g. "Notion (2)".
type Scheduler struct {
	DB     *gorm.DB
	Runner Runner

	RefreshAfter    time.Duration
	MinDelay        time.Duration
	MaxDelay        time.Duration
	NewSoftwareFile string
	Keywords        []string

	// Now defaults to time.Now.
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Scheduler) keyword(i int) string {
	if i >= 0 && i < len(s.Keywords) {
		return s.Keywords[i]
	}
	if len(s.Keywords) > 0 {
		return s.Keywords[0]
	}
	return "coupon code"
}

// DueJobs lists the jobs that should run now, new software first. Names are
// de-duplicated by their compact slug.
func (s *Scheduler) DueJobs(ctx context.Context) ([]Job, error) {
	cutoff := s.now().Add(-s.RefreshAfter)
	seen := map[string]struct{}{}
	var jobs []Job

	add := func(j Job) error {
		k := domain.CompactSlug(j.Name)
		if k == "" {
			return nil
		}
		if _, dup := seen[k]; dup {
			return nil
		}
		seen[k] = struct{}{}
		due, err := repo.IngestDue(ctx, s.DB, j.Name, cutoff)
		if err != nil {
			return fmt.Errorf("check schedule for %q: %w", j.Name, err)
		}
		if due {
			jobs = append(jobs, j)
		}
		return nil
	}

	if s.NewSoftwareFile != "" {
		entries, err := ReadNewSoftware(s.NewSoftwareFile)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if err := add(Job{Name: e.Name, Keyword: s.keyword(e.KeywordIndex), New: true}); err != nil {
				return nil, err
			}
		}
	}

	names, err := repo.ListDealNames(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("list deal names: %w", err)
	}
	for _, n := range names {
		if err := add(Job{Name: n, Keyword: s.keyword(0)}); err != nil {
			return nil, err
		}
	}
	return jobs, nil
}

// RunOnce runs every due job and records each outcome. It returns the number
// of jobs that succeeded. A failed job is recorded and does not stop the
// round; only a cancelled ctx or a schedule store failure does.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	jobs, err := s.DueJobs(ctx)
	if err != nil {
		return 0, err
	}
	log.Info().Int("due", len(jobs)).Msg("ingest round started")

	succeeded := 0
	for i, job := range jobs {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				return succeeded, err
			}
		}
		res, runErr := s.Runner.Run(ctx, job)
		if errors.Is(runErr, context.Canceled) && ctx.Err() != nil {
			return succeeded, ctx.Err()
		}
		if err := s.record(ctx, job, res, runErr); err != nil {
			return succeeded, err
		}
		if runErr == nil {
			succeeded++
		}
	}
	log.Info().Int("due", len(jobs)).Int("succeeded", succeeded).Msg("ingest round finished")
	return succeeded, nil
}

// Run calls RunOnce every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("ingest round failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Scheduler) record(ctx context.Context, job Job, res *services.ApplyResult, runErr error) error {
	run := &domain.IngestRun{SoftwareName: job.Name, LastRunAt: s.now()}
	lg := log.With().Str("software", job.Name).Bool("new", job.New).Logger()
	switch {
	case runErr != nil:
		stage := StageOf(runErr)
		if stage == "" {
			stage = "unknown"
		}
		msg := runErr.Error()
		run.Status, run.Message = StatusFailed, &msg
		ingestStageErrors.WithLabelValues(stage).Inc()
		lg.Warn().Err(runErr).Str("stage", stage).Msg("ingest failed")
	case res.Created:
		run.Status, run.DealID = StatusCreated, &res.Deal.ID
	default:
		run.Status, run.DealID = StatusUpdated, &res.Deal.ID
	}
	ingestRuns.WithLabelValues(run.Status).Inc()
	if err := repo.SaveIngestRun(ctx, s.DB, run); err != nil {
		return fmt.Errorf("save ingest run for %q: %w", job.Name, err)
	}
	return nil
}

// pause sleeps a random duration in [MinDelay, MaxDelay].
func (s *Scheduler) pause(ctx context.Context) error {
	d := s.MinDelay
	if span := s.MaxDelay - s.MinDelay; span > 0 {
		d += rand.N(span + 1)
	}
	if d <= 0 {
		return ctx.Err()
	}
	log.Debug().Dur("delay", d).Msg("waiting before next ingest job")
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewSoftwareEntry is one line of the new-software file.
type NewSoftwareEntry struct {
	Name string
	// KeywordIndex is 0-based.
	KeywordIndex int
}

var entryRE = regexp.MustCompile(`^(.+?)\s*\((\d+)\)\s*$`)

// ParseNewSoftwareEntry parses "Name" or "Name (n)" where n is a 1-based
// keyword selector.
func ParseNewSoftwareEntry(line string) (NewSoftwareEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return NewSoftwareEntry{}, false
	}
	if m := entryRE.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[2])
		return NewSoftwareEntry{Name: strings.TrimSpace(m[1]), KeywordIndex: n - 1}, true
	}
	return NewSoftwareEntry{Name: line}, true
}

// ReadNewSoftware reads the new-software file at path. A missing file is
// not an error.
func ReadNewSoftware(path string) ([]NewSoftwareEntry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open new software file: %w", err)
	}
	defer f.Close()

	var out []NewSoftwareEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if e, ok := ParseNewSoftwareEntry(sc.Text()); ok {
			out = append(out, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read new software file: %w", err)
	}
	return out, nil
}
