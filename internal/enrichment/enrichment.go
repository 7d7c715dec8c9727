// Package enrichment augments catalog items with metadata fetched from a
// remote provider. Failures never propagate: the item is served as is.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/coursemate-backend/config"
)

var (
	// ErrUpstreamTimeout means the provider did not answer within the per-call timeout.
	ErrUpstreamTimeout = errors.New("upstream timeout")
	// ErrUpstreamError covers every other provider failure, including an open breaker.
	ErrUpstreamError = errors.New("upstream error")
	// ErrNotConfigured is returned when no provider base URL is set.
	ErrNotConfigured = errors.New("enrichment not configured")
)

// Metadata is what a provider adds to an item.
type Metadata struct {
	Overview    string   `json:"overview,omitempty"`
	Tagline     string   `json:"tagline,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

// Provider fetches metadata for one item id.
type Provider interface {
	Fetch(ctx context.Context, id int64) (*Metadata, error)
}

// Settings are the parsed enrichment options.
type Settings struct {
	BaseURL        string
	ItemPath       string
	APIKey         string
	AuthMode       string // query, bearer or basic
	UserAgent      string
	ImageBaseURL   string
	Timeout        time.Duration
	MaxConcurrency int
	RateLimit      float64
	Burst          int
	CacheSize      int
	CacheTTL       time.Duration
}

// Enabled reports whether a provider is configured.
func (s Settings) Enabled() bool { return s.BaseURL != "" }

// NewSettings parses enrichment configuration with validation and defaults
func NewSettings(cfg *config.EnrichmentConfig) (Settings, error) {
	s := Settings{
		BaseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		ItemPath:       cfg.ItemPath,
		APIKey:         cfg.APIKey,
		AuthMode:       strings.ToLower(cfg.AuthMode),
		UserAgent:      cfg.UserAgent,
		ImageBaseURL:   cfg.ImageBaseURL,
		Timeout:        5 * time.Second,
		MaxConcurrency: 12,
		RateLimit:      10,
		Burst:          6,
		CacheSize:      2048,
		CacheTTL:       60 * time.Second,
	}
	if s.ItemPath == "" {
		s.ItemPath = "/{id}"
	}
	if s.AuthMode == "" {
		s.AuthMode = "query"
	}
	if s.UserAgent == "" {
		s.UserAgent = "coursemate-backend/1.0"
	}

	switch s.AuthMode {
	case "query", "bearer", "basic":
	default:
		return s, fmt.Errorf("invalid auth mode '%s': expected query, bearer or basic", cfg.AuthMode)
	}
	if !strings.Contains(s.ItemPath, "{id}") {
		return s, fmt.Errorf("invalid item path '%s': must contain {id}", cfg.ItemPath)
	}

	var err error
	if s.Timeout, err = parseDuration("timeout", cfg.Timeout, s.Timeout); err != nil {
		return s, err
	}
	if s.CacheTTL, err = parseDuration("cache ttl", cfg.CacheTTL, s.CacheTTL); err != nil {
		return s, err
	}
	if s.MaxConcurrency, err = parsePositiveInt("max concurrency", cfg.MaxConcurrency, s.MaxConcurrency); err != nil {
		return s, err
	}
	if s.Burst, err = parsePositiveInt("burst", cfg.Burst, s.Burst); err != nil {
		return s, err
	}
	if s.CacheSize, err = parsePositiveInt("cache size", cfg.CacheSize, s.CacheSize); err != nil {
		return s, err
	}
	if cfg.RateLimit != "" {
		v, err := strconv.ParseFloat(cfg.RateLimit, 64)
		if err != nil || v <= 0 {
			return s, fmt.Errorf("invalid rate limit '%s': must be a positive number", cfg.RateLimit)
		}
		s.RateLimit = v
	}
	return s, nil
}

func parseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("invalid %s '%s': must be a positive duration", name, raw)
	}
	return d, nil
}

func parsePositiveInt(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def, fmt.Errorf("invalid %s '%s': must be a positive integer", name, raw)
	}
	return n, nil
}
