// Package config provides application configuration loaded from environment
// variables with defaults and validation. It covers both processes of the
// deals backend: the HTTP API (server timeouts, storage, paging sizes, rate
// limiting, web protection, observability) and the ingestion worker (search,
// fetch, Gemini extraction, refresh scheduling).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/go-deals-backend/internal/sysutil"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-deals-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects and addresses the backing database.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file path (sqlite driver)
	DSN    string // DATABASE_URL (postgres driver)
}

// PagingConfig holds the fixed page sizes used by read endpoints.
type PagingConfig struct {
	RelatedPageSize    int // "load more" batch of related deals
	RelatedInitialSize int // first batch shown with a deal
	SearchLimit        int
	RandomCategories   int
	MaxCategories      int // primary + secondaries per deal
}

// IngestConfig configures the ingestion worker.
type IngestConfig struct {
	GeminiAPIKey    string
	GeminiModel     string
	SearchURL       string // fmt template, %s receives the escaped query
	Renderer        string // http|chrome
	MaxPages        int
	FetchTimeout    time.Duration
	RefreshAfter    time.Duration
	MinDelay        time.Duration
	MaxDelay        time.Duration
	NewSoftwareFile string
	Keywords        []string
	UserAgent       string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string // without the colon
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DB DBConfig

	// Domain paging
	Paging PagingConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig

	// Ingestion worker
	Ingest IngestConfig
}

// MustLoad is Load for entry points that cannot run without configuration.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, applies defaults and validates the result.
//
// Unset or empty variables take their default. A variable that is set but
// cannot be parsed is an error rather than a silent fallback. All problems
// are reported together, joined with errors.Join.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.duration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.duration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.duration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.duration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           e.lower("GIN_MODE", "release"),

		LogLevel:       e.lower("LOG_LEVEL", "info"),
		LogPretty:      e.flag("LOG_PRETTY", false),
		SwaggerEnabled: e.flag("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api")),

		DB: DBConfig{
			Driver: e.lower("DB_DRIVER", "sqlite"),
			Path:   e.str("DB_PATH", "deals.db"),
			DSN:    e.str("DATABASE_URL", ""),
		},

		Paging: PagingConfig{
			RelatedPageSize:    e.integer("RELATED_PAGE_SIZE", 3),
			RelatedInitialSize: e.integer("RELATED_INITIAL_SIZE", 6),
			SearchLimit:        e.integer("SEARCH_LIMIT", 12),
			RandomCategories:   e.integer("RANDOM_CATEGORIES", 10),
			MaxCategories:      e.integer("MAX_CATEGORIES", 5),
		},

		RateRPS:   e.number("RATE_RPS", 10),
		RateBurst: e.integer("RATE_BURST", 20),

		CORS: CORSConfig{AllowedOrigins: splitCSV(e.str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.duration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-deals-backend"),
			SampleRatio: e.number("OTEL_TRACES_SAMPLER_ARG", 1),
		},

		Ingest: IngestConfig{
			GeminiAPIKey:    e.str("GEMINI_API_KEY", ""),
			GeminiModel:     e.str("GEMINI_MODEL", "gemini-2.5-flash"),
			SearchURL:       e.str("INGEST_SEARCH_URL", "https://html.duckduckgo.com/html/?q=%s"),
			Renderer:        e.lower("INGEST_RENDERER", "http"),
			MaxPages:        e.integer("INGEST_MAX_PAGES", 3),
			FetchTimeout:    e.duration("INGEST_FETCH_TIMEOUT", 30*time.Second),
			RefreshAfter:    e.duration("INGEST_REFRESH_AFTER", 90*24*time.Hour),
			MinDelay:        e.duration("INGEST_MIN_DELAY", 30*time.Minute),
			MaxDelay:        e.duration("INGEST_MAX_DELAY", 180*time.Minute),
			NewSoftwareFile: e.str("INGEST_NEW_SOFTWARE_FILE", ""),
			Keywords:        splitCSV(e.str("INGEST_KEYWORDS", "coupon code,discount,promo code")),
			UserAgent:       e.str("INGEST_USER_AGENT", "Mozilla/5.0 (compatible; go-deals-backend/1.0)"),
		},
	}
	cfg.normalize()
	return cfg, errors.Join(append(e.errs, cfg.Validate()...)...)
}

// normalize maps accepted aliases onto canonical values.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	switch c.DB.Driver {
	case "postgresql", "pg":
		c.DB.Driver = "postgres"
	case "sqlite3":
		c.DB.Driver = "sqlite"
	}
}

// Validate returns every constraint the configuration breaks, each naming
// the variable to fix.
func (c Config) Validate() []error {
	var errs []error
	check := func(bad bool, format string, args ...any) {
		if bad {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(!oneOf(c.LogLevel, "debug", "info", "warn", "error", "fatal", "panic"),
		"LOG_LEVEL must be one of debug, info, warn, error, fatal, panic; got %q", c.LogLevel)
	check(strings.TrimSpace(c.Port) == "", "PORT must not be empty")
	check(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
		"server timeouts must be positive")
	check(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DB.Driver {
	case "sqlite":
		check(strings.TrimSpace(c.DB.Path) == "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DB.DSN) == "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		check(true, "DB_DRIVER must be sqlite or postgres, got %q", c.DB.Driver)
	}

	p := c.Paging
	check(p.RelatedPageSize < 1, "RELATED_PAGE_SIZE must be >= 1")
	check(p.RelatedInitialSize < 1, "RELATED_INITIAL_SIZE must be >= 1")
	check(p.SearchLimit < 1, "SEARCH_LIMIT must be >= 1")
	check(p.RandomCategories < 1, "RANDOM_CATEGORIES must be >= 1")
	check(p.MaxCategories < 1, "MAX_CATEGORIES must be >= 1")

	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	in := c.Ingest
	check(!oneOf(in.Renderer, "http", "chrome"), "INGEST_RENDERER must be http or chrome, got %q", in.Renderer)
	check(!strings.Contains(in.SearchURL, "%s"), "INGEST_SEARCH_URL must contain a %%s placeholder")
	check(in.MaxPages < 1, "INGEST_MAX_PAGES must be >= 1")
	check(in.MinDelay < 0 || in.MaxDelay < in.MinDelay, "INGEST_MAX_DELAY must be >= INGEST_MIN_DELAY >= 0")
	check(in.RefreshAfter <= 0, "INGEST_REFRESH_AFTER must be > 0")
	check(in.FetchTimeout <= 0, "INGEST_FETCH_TIMEOUT must be > 0")
	check(len(in.Keywords) == 0, "INGEST_KEYWORDS must name at least one keyword")
	return errs
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// env reads typed variables and remembers the ones it could not parse.
type env struct{ errs []error }

// lookup returns the trimmed value of k, or false when unset or blank.
func (e *env) lookup(k string) (string, bool) {
	v, ok := os.LookupEnv(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) fail(k, v, kind string) {
	e.errs = append(e.errs, fmt.Errorf("%s: %q is not a valid %s", k, v, kind))
}

func (e *env) str(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func (e *env) lower(k, def string) string { return strings.ToLower(strings.TrimSpace(e.str(k, def))) }

func (e *env) integer(k string, def int) int {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, "integer")
		return def
	}
	return n
}

func (e *env) number(k string, def float64) float64 {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, v, "number")
		return def
	}
	return f
}

func (e *env) duration(k string, def time.Duration) time.Duration {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(k, v, "duration")
		return def
	}
	return d
}

func (e *env) flag(k string, def bool) bool {
	v, ok := e.lookup(k)
	if !ok {
		return def
	}
	if sysutil.IsTruthy(v) {
		return true
	}
	switch strings.ToLower(v) {
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail(k, v, "boolean")
	return def
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank means root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
