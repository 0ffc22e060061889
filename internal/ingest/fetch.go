package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// minParagraphRunes drops menu items, buttons, and other short fragments.
const minParagraphRunes = 25

// HTTPFetcher downloads pages over plain HTTP and parses them with goquery.
// Transient failures (network errors, 429, 5xx) are retried with
// exponential backoff.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	// Retries is the number of extra attempts after the first.
	Retries int
	// Backoff is the first retry delay; it doubles on every attempt.
	Backoff time.Duration
	// Limiter paces outgoing requests when set.
	Limiter *rate.Limiter
}

// NewHTTPFetcher returns a fetcher with a per-request timeout and a pacing
// of one request per second.
func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		UserAgent: userAgent,
		Retries:   2,
		Backoff:   time.Second,
		Limiter:   rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	doc, err := f.Document(ctx, rawURL)
	if err != nil {
		return Page{}, err
	}
	return PageFromDocument(rawURL, doc), nil
}

// Document downloads rawURL and parses it as HTML.
func (f *HTTPFetcher) Document(ctx context.Context, rawURL string) (*goquery.Document, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, rawURL)
	}

	var doc *goquery.Document
	err = retryWithBackoff(ctx, f.Retries, f.Backoff, func(int) error {
		if f.Limiter != nil {
			if err := f.Limiter.Wait(ctx); err != nil {
				return permanent{err}
			}
		}
		d, err := f.get(ctx, rawURL)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	return doc, err
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, permanent{err}
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch %s: status %d", rawURL, res.StatusCode)
		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			return nil, err
		}
		return nil, permanent{err}
	}
	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// ChromeFetcher renders pages in headless Chrome, for sites that build their
// content with JavaScript. Each Fetch starts and stops its own browser.
type ChromeFetcher struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetch implements Fetcher.
func (f *ChromeFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	if f.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.UserAgent))
	}
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	cctx, cancelCtx := chromedp.NewContext(actx)
	defer cancelCtx()

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(cctx, timeout)
	defer cancel()

	var html string
	if err := chromedp.Run(cctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return Page{}, fmt.Errorf("render %s: %w", rawURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return PageFromDocument(rawURL, doc), nil
}

// PageFromDocument keeps the readable blocks of doc: headings, paragraphs,
// list items, and table cells, in document order and without repeats.
func PageFromDocument(rawURL string, doc *goquery.Document) Page {
	doc.Find("script, style, noscript, svg, nav, footer, form, iframe").Remove()

	p := Page{URL: rawURL, Title: collapse(doc.Find("title").First().Text())}
	seen := map[string]struct{}{}
	doc.Find("h1, h2, h3, h4, p, li, td, blockquote").Each(func(_ int, s *goquery.Selection) {
		// Outer blocks repeat the text of their inner blocks.
		if s.Find("p, li, td").Length() > 0 {
			return
		}
		t := collapse(s.Text())
		if utf8.RuneCountInString(t) < minParagraphRunes {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		p.Paragraphs = append(p.Paragraphs, t)
	})
	return p
}

// FetchAll downloads urls with at most concurrency requests in flight.
// Failed pages are logged and left out; the result keeps the order of urls.
func FetchAll(ctx context.Context, f Fetcher, urls []string, concurrency int) []Page {
	if concurrency <= 0 {
		concurrency = 3
	}
	pages := make([]*Page, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			pg, err := f.Fetch(gctx, u)
			if err != nil {
				log.Warn().Err(err).Str("url", u).Msg("page fetch failed")
				return nil
			}
			pages[i] = &pg
			return nil
		})
	}
	_ = g.Wait()

	out := make([]Page, 0, len(urls))
	for _, pg := range pages {
		if pg != nil && (len(pg.Paragraphs) > 0 || pg.Title != "") {
			out = append(out, *pg)
		}
	}
	return out
}

// permanent marks an error that retrying cannot fix.
type permanent struct{ err error }

func (p permanent) Error() string { return p.err.Error() }

func (p permanent) Unwrap() error { return p.err }

// retryWithBackoff calls fn up to retries+1 times, doubling the delay
// between attempts. It stops early on a permanent error or when ctx ends.
func retryWithBackoff(ctx context.Context, retries int, backoff time.Duration, fn func(attempt int) error) error {
	var last error
	for attempt := 0; attempt <= retries; attempt++ {
		last = fn(attempt)
		if last == nil {
			return nil
		}
		var perm permanent
		if errors.As(last, &perm) {
			return perm.err
		}
		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff << attempt):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", retries, last)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
