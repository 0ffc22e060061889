package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// skipHosts are result hosts that never carry deal details worth reading:
// search engines themselves, video sites, and social networks.
var skipHosts = []string{
	"google.com", "gstatic.com", "googleusercontent.com", "googleadservices.com", "doubleclick.net",
	"duckduckgo.com", "bing.com",
	"youtube.com", "youtu.be", "vimeo.com", "tiktok.com",
	"facebook.com", "instagram.com", "twitter.com", "x.com", "linkedin.com", "pinterest.com", "reddit.com",
}

// HTMLSearcher scrapes the HTML result page of a search endpoint. URL is a
// fmt template whose %s receives the escaped query, e.g.
// "https://html.duckduckgo.com/html/?q=%s".
type HTMLSearcher struct {
	URL     string
	Fetcher *HTTPFetcher
	// Max caps the number of results returned; zero means 10.
	Max int
}

// Search implements Searcher.
func (s *HTMLSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := fmt.Sprintf(s.URL, url.QueryEscape(query))
	doc, err := s.Fetcher.Document(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	limit := s.Max
	if limit <= 0 {
		limit = 10
	}
	return ParseResults(doc, limit), nil
}

// ParseResults extracts organic results from a search result page. It
// understands the DuckDuckGo HTML layout and falls back to any outbound
// heading link for other engines.
func ParseResults(doc *goquery.Document, limit int) []SearchResult {
	var out []SearchResult
	seen := map[string]struct{}{}
	add := func(href, title, snippet string) {
		if len(out) >= limit {
			return
		}
		u, ok := resultURL(href)
		if !ok || skipHost(u.Hostname()) {
			return
		}
		key := u.String()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, SearchResult{URL: key, Title: collapse(title), Snippet: collapse(snippet)})
	}

	doc.Find(".result").Each(func(_ int, r *goquery.Selection) {
		a := r.Find("a.result__a").First()
		href, _ := a.Attr("href")
		add(href, a.Text(), r.Find(".result__snippet").First().Text())
	})
	if len(out) > 0 {
		return out
	}
	doc.Find("h2 a[href], h3 a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		add(href, a.Text(), "")
	})
	return out
}

// resultURL resolves a result href, unwrapping redirect links that carry the
// target in a uddg or q parameter.
func resultURL(href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	for _, param := range []string{"uddg", "q"} {
		if target := u.Query().Get(param); strings.HasPrefix(target, "http") {
			if t, err := url.Parse(target); err == nil {
				u = t
				break
			}
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, false
	}
	u.Fragment = ""
	return u, true
}

func skipHost(host string) bool {
	host = strings.ToLower(host)
	for _, h := range skipHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
