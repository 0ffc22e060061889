package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const samplePage = `<html><head><title>Notion Coupon Codes</title><script>var x = "ignored script text that is long";</script></head>
<body>
<nav><p>Home Pricing Blog Contact and other navigation entries</p></nav>
<h1>Notion promo codes for this month</h1>
<div>
  <p>Use code SAVE20 at checkout to get 20% off the Plus plan.</p>
  <p>Use code SAVE20 at checkout to get 20% off the Plus plan.</p>
  <p>Short bit</p>
  <ul><li>Free trial for teams with up to ten members included.</li></ul>
</div>
<footer><p>Copyright notice and other legal footer text here.</p></footer>
</body></html>`

func newTestFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 5 * time.Second}, UserAgent: "test-agent", Retries: 2, Backoff: time.Millisecond}
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("user agent = %q", r.Header.Get("User-Agent"))
		}
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	p, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if p.Title != "Notion Coupon Codes" {
		t.Fatalf("title = %q", p.Title)
	}
}

func TestHTTPFetcher_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("err = %v, want 404", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestHTTPFetcher_RejectsNonHTTP(t *testing.T) {
	if _, err := newTestFetcher().Fetch(context.Background(), "file:///etc/passwd"); err == nil {
		t.Fatalf("expected error for file scheme")
	}
}

func TestPageFromDocument_KeepsReadableBlocks(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(samplePage))
	if err != nil {
		t.Fatal(err)
	}
	p := PageFromDocument("https://example.com/notion", doc)

	want := []string{
		"Notion promo codes for this month",
		"Use code SAVE20 at checkout to get 20% off the Plus plan.",
		"Free trial for teams with up to ten members included.",
	}
	if len(p.Paragraphs) != len(want) {
		t.Fatalf("paragraphs = %q", p.Paragraphs)
	}
	for i := range want {
		if p.Paragraphs[i] != want[i] {
			t.Fatalf("paragraph %d = %q, want %q", i, p.Paragraphs[i], want[i])
		}
	}
}

type mapFetcher map[string]Page

func (m mapFetcher) Fetch(_ context.Context, u string) (Page, error) {
	p, ok := m[u]
	if !ok {
		return Page{}, errors.New("boom")
	}
	return p, nil
}

func TestFetchAll_SkipsFailuresKeepsOrder(t *testing.T) {
	f := mapFetcher{
		"a": {URL: "a", Paragraphs: []string{"x"}},
		"c": {URL: "c", Title: "C"},
		"d": {URL: "d"},
	}
	pages := FetchAll(context.Background(), f, []string{"a", "b", "c", "d"}, 2)
	if len(pages) != 2 || pages[0].URL != "a" || pages[1].URL != "c" {
		t.Fatalf("pages = %+v", pages)
	}
}

func TestRetryWithBackoff_StopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryWithBackoff(ctx, 5, time.Hour, func(int) error {
		calls++
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d", calls)
	}
}
