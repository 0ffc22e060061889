package ingest

import (
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/tbourn/go-deals-backend/internal/services"
)

// LogoBase is the logo service that serves an image for a bare domain.
const LogoBase = "https://logo.clearbit.com/"

var percentRE = regexp.MustCompile(`\d+(?:\.\d+)?`)

// Payload normalizes the analysis into an ingest payload for name. The
// scheduled name wins over whatever name the model reported, so the fuzzy
// match always targets the deal that was scheduled.
func (a *Analysis) Payload(name string) services.IngestPayload {
	p := services.IngestPayload{
		SoftwareName:    strings.TrimSpace(name),
		Discount:        discountText(string(a.BestDiscount)),
		Description:     nonBlank(a.DetailedDescription, a.SEODescription),
		About:           nonBlank(string(a.ComprehensiveAbout)),
		CouponCode:      firstCoupon(a.AllCouponCodes),
		TimeLimit:       nonBlank(a.ExpirationInfo),
		Categories:      a.Categories,
		PrimaryCategory: strings.TrimSpace(a.PrimaryCategory),
	}
	if p.SoftwareName == "" {
		p.SoftwareName = strings.TrimSpace(a.SoftwareName)
	}
	if d := CleanDomain(a.LogoDomain); d != "" {
		logo := LogoBase + d
		site := "https://" + d
		p.LogoURL, p.WebsiteURL = &logo, &site
	}
	return p
}

// discountText renders the first number in raw as "<n>% OFF".
func discountText(raw string) *string {
	m := percentRE.FindString(raw)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil || f <= 0 {
		return nil
	}
	s := strconv.FormatFloat(f, 'f', -1, 64) + "% OFF"
	return &s
}

// CleanDomain reduces a URL or host to its registrable domain, lowercase
// ("https://app.Notion.so/x" gives "notion.so"). It returns "" for IPs,
// single-label hosts and bare public suffixes.
func CleanDomain(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil || strings.ContainsAny(host, " _") {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

func firstCoupon(codes []string) *string {
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			return &c
		}
	}
	return nil
}

// nonBlank returns the first value that is not blank after trimming.
func nonBlank(vals ...string) *string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return &v
		}
	}
	return nil
}
