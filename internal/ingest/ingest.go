// Package ingest gathers deal information for a software name from the
// public web and merges it into the catalogue.
//
// One run for a name goes through five stages:
//
//  1. search:  query an HTML search endpoint for "<name> <keyword>"
//  2. fetch:   download the top result pages (plain HTTP or headless Chrome)
//  3. stitch:  build one text document from the search snippets and the most
//     relevant paragraphs of every page
//  4. extract: ask Gemini for a structured Analysis of that document
//  5. apply:   normalize the Analysis into an ingest payload and hand it to
//     services.IngestService, which owns the merge rules
//
// Every stage is behind a small interface so runs can be tested with fakes.
// The package does not decide when a name is due; see Scheduler.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-deals-backend/internal/services"
)

// SearchResult is one organic hit of a search query.
type SearchResult struct {
	URL     string
	Title   string
	Snippet string
}

// Page is the readable text of a fetched page, split into paragraphs.
type Page struct {
	URL        string
	Title      string
	Paragraphs []string
}

// Searcher finds candidate pages for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Fetcher downloads one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Extractor turns stitched page text into an Analysis.
type Extractor interface {
	Extract(ctx context.Context, name, content string) (*Analysis, error)
}

// Applier merges a payload into the catalogue.
type Applier interface {
	Apply(ctx context.Context, p services.IngestPayload) (*services.ApplyResult, error)
}

// Job is one unit of scheduled work.
type Job struct {
	Name    string
	Keyword string
	// New marks names read from the new-software file rather than the catalogue.
	New bool
}

// Query is the search query for the job.
func (j Job) Query() string {
	return strings.TrimSpace(j.Name + " " + j.Keyword)
}

// Stage names used in errors, logs, and metrics.
const (
	StageSearch  = "search"
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageApply   = "apply"
)

// StageError reports which stage of a run failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failed stage of err, or "" when err did not come from
// a pipeline stage.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// ErrNoPages is returned when a search yields neither snippets nor
// fetchable pages.
var ErrNoPages = errors.New("nothing to analyze")

// Pipeline runs the stages for one job.
type Pipeline struct {
	Search  Searcher
	Fetch   Fetcher
	Extract Extractor
	Apply   Applier

	// MaxPages caps how many result pages are fetched.
	MaxPages int
	// FetchConcurrency caps parallel page downloads.
	FetchConcurrency int
	// Stitch tunes the document handed to the extractor.
	Stitch StitchOptions
}

// Run searches, fetches, extracts, and applies one job.
func (p *Pipeline) Run(ctx context.Context, job Job) (*services.ApplyResult, error) {
	lg := log.With().Str("software", job.Name).Str("query", job.Query()).Logger()
	start := time.Now()

	results, err := p.Search.Search(ctx, job.Query())
	if err != nil {
		return nil, &StageError{Stage: StageSearch, Err: err}
	}
	lg.Debug().Int("results", len(results)).Msg("search done")

	limit := p.MaxPages
	if limit <= 0 {
		limit = 3
	}
	urls := make([]string, 0, limit)
	for _, r := range results {
		if len(urls) == limit {
			break
		}
		urls = append(urls, r.URL)
	}
	pages := FetchAll(ctx, p.Fetch, urls, p.FetchConcurrency)
	if len(pages) == 0 && len(results) == 0 {
		return nil, &StageError{Stage: StageFetch, Err: ErrNoPages}
	}
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageFetch, Err: err}
	}
	lg.Debug().Int("pages", len(pages)).Msg("fetch done")

	doc := Stitch(job.Query(), results, pages, p.Stitch)
	a, err := p.Extract.Extract(ctx, job.Name, doc)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}

	payload := a.Payload(job.Name)
	res, err := p.Apply.Apply(ctx, payload)
	if err != nil {
		return nil, &StageError{Stage: StageApply, Err: fmt.Errorf("apply %q: %w", job.Name, err)}
	}
	lg.Info().
		Uint("deal_id", res.Deal.ID).
		Bool("created", res.Created).
		Int("categories", len(res.Categories)).
		Dur("took", time.Since(start)).
		Msg("ingested")
	return res, nil
}
