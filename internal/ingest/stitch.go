package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// StitchOptions bounds the document built by Stitch.
type StitchOptions struct {
	// ParagraphsPerPage caps how many paragraphs are kept per page; zero means 40.
	ParagraphsPerPage int
	// RunesPerPage caps the text kept per page; zero means 6000.
	RunesPerPage int
}

func (o StitchOptions) withDefaults() StitchOptions {
	if o.ParagraphsPerPage <= 0 {
		o.ParagraphsPerPage = 40
	}
	if o.RunesPerPage <= 0 {
		o.RunesPerPage = 6000
	}
	return o
}

// dealTerms are words that mark a paragraph as deal-relevant whatever the
// query says.
var dealTerms = map[string]struct{}{
	"coupon": {}, "code": {}, "discount": {}, "off": {}, "promo": {}, "deal": {},
	"price": {}, "pricing": {}, "plan": {}, "plans": {}, "free": {}, "trial": {}, "save": {},
}

// Stitch builds the extractor input for query: first the search results,
// then one section per page holding its most relevant paragraphs.
//
// Paragraphs are scored by Jaccard similarity between their token set and
// the query tokens, plus a small bonus for deal vocabulary. The best ones
// are kept up to the per-page budget and emitted in their original order.
func Stitch(query string, results []SearchResult, pages []Page, opts StitchOptions) string {
	opts = opts.withDefaults()
	q := tokenize(query)

	var b strings.Builder
	fmt.Fprintf(&b, "SEARCH RESULTS FOR %q\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "   %s\n", r.Snippet)
		}
	}

	for i, p := range pages {
		fmt.Fprintf(&b, "\nRANKED #%d RESULT: %s\n", i+1, p.URL)
		if p.Title != "" {
			b.WriteString(p.Title)
			b.WriteByte('\n')
		}
		for _, para := range selectParagraphs(q, p.Paragraphs, opts) {
			b.WriteString(para)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

type scoredPara struct {
	pos      int
	text     string
	score    float64
	lenRunes int
}

func selectParagraphs(q map[string]struct{}, paras []string, opts StitchOptions) []string {
	buf := make([]scoredPara, 0, len(paras))
	for i, p := range paras {
		buf = append(buf, scoredPara{
			pos:      i,
			text:     p,
			score:    score(q, tokenize(p)),
			lenRunes: utf8.RuneCountInString(p),
		})
	}

	// Deterministic: score desc, shorter first, then position.
	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].pos < buf[b].pos
	})

	kept := make([]scoredPara, 0, opts.ParagraphsPerPage)
	budget := opts.RunesPerPage
	for _, sp := range buf {
		if len(kept) == opts.ParagraphsPerPage {
			break
		}
		if sp.lenRunes > budget {
			continue
		}
		budget -= sp.lenRunes
		kept = append(kept, sp)
	}
	sort.Slice(kept, func(a, b int) bool { return kept[a].pos < kept[b].pos })

	out := make([]string, len(kept))
	for i, sp := range kept {
		out[i] = sp.text
	}
	return out
}

// score is |Q ∩ P| / |Q ∪ P| plus 0.05 per deal term in P, capped at 0.25.
func score(q, p map[string]struct{}) float64 {
	var s float64
	if over := overlap(q, p); over > 0 {
		s = float64(over) / float64(len(q)+len(p)-over)
	}
	bonus := 0.0
	for t := range p {
		if _, ok := dealTerms[t]; ok {
			bonus += 0.05
		}
	}
	if bonus > 0.25 {
		bonus = 0.25
	}
	return s + bonus
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+%?`)

func tokenize(s string) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
