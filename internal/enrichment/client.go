package enrichment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/coursemate-backend/internal/metrics"
	"github.com/dustin/coursemate-backend/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// errItemMissing is a provider 404. It counts as a healthy response for the
// breaker.
var errItemMissing = fmt.Errorf("%w: item not found upstream", ErrUpstreamError)

// HTTPProvider fetches metadata by id over HTTP behind a rate limiter and a
// circuit breaker.
type HTTPProvider struct {
	settings Settings
	client   *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[*Metadata]
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewHTTPProvider creates a provider client from parsed settings
func NewHTTPProvider(s Settings, m *metrics.Metrics, log *logger.Logger) *HTTPProvider {
	p := &HTTPProvider{
		settings: s,
		client: &http.Client{
			Timeout: s.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: s.MaxConcurrency,
				MaxConnsPerHost:     s.MaxConcurrency,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(s.RateLimit), s.Burst),
		metrics: m,
		logger:  log.WithComponent("enrichment-provider"),
	}

	p.breaker = gobreaker.NewCircuitBreaker[*Metadata](gobreaker.Settings{
		Name:        "metadata-provider",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("Circuit breaker " + name + " changed from " + from.String() + " to " + to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errItemMissing)
		},
	})
	return p
}

// State returns the breaker state for health reporting.
func (p *HTTPProvider) State() string {
	return p.breaker.State().String()
}

// Fetch returns metadata for id. Errors wrap ErrUpstreamTimeout or
// ErrUpstreamError.
func (p *HTTPProvider) Fetch(ctx context.Context, id int64) (*Metadata, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		p.metrics.Upstream("timeout")
		return nil, fmt.Errorf("%w: rate limiter: %v", ErrUpstreamTimeout, err)
	}

	md, err := p.breaker.Execute(func() (*Metadata, error) {
		return p.fetch(ctx, id)
	})
	switch {
	case err == nil:
		p.metrics.Upstream("ok")
		return md, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		p.metrics.Upstream("open")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamError, err)
	case errors.Is(err, ErrUpstreamTimeout):
		p.metrics.Upstream("timeout")
	default:
		p.metrics.Upstream("error")
	}
	return nil, err
}

func (p *HTTPProvider) fetch(ctx context.Context, id int64) (*Metadata, error) {
	req, err := p.newRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstreamError, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: failed to make request: %v", ErrUpstreamError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errItemMissing
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: provider status %d: %s", ErrUpstreamError, resp.StatusCode, string(body))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrUpstreamError, err)
	}
	return p.toMetadata(raw), nil
}

func (p *HTTPProvider) newRequest(ctx context.Context, id int64) (*http.Request, error) {
	path := strings.ReplaceAll(p.settings.ItemPath, "{id}", strconv.FormatInt(id, 10))
	u, err := url.Parse(p.settings.BaseURL + path)
	if err != nil {
		return nil, err
	}

	if p.settings.APIKey != "" && p.settings.AuthMode == "query" {
		q := u.Query()
		q.Set("api_key", p.settings.APIKey)
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", p.settings.UserAgent)

	switch {
	case p.settings.APIKey == "":
	case p.settings.AuthMode == "bearer":
		req.Header.Set("Authorization", "Bearer "+p.settings.APIKey)
	case p.settings.AuthMode == "basic":
		user, pass, _ := strings.Cut(p.settings.APIKey, ":")
		req.SetBasicAuth(user, pass)
	}
	return req, nil
}

// toMetadata maps the movie and course provider shapes onto Metadata.
func (p *HTTPProvider) toMetadata(raw map[string]any) *Metadata {
	md := &Metadata{
		Overview:    firstString(raw, "overview", "description"),
		Tagline:     firstString(raw, "tagline", "headline"),
		Homepage:    firstString(raw, "homepage", "url"),
		ReleaseDate: firstString(raw, "release_date", "published_time"),
		Runtime:     int(firstNumber(raw, "runtime", "content_length_video")),
		Rating:      firstNumber(raw, "vote_average", "avg_rating", "rating"),
	}

	img := firstString(raw, "poster_path", "image_480x270", "image_url", "image")
	if img != "" && strings.HasPrefix(img, "/") && p.settings.ImageBaseURL != "" {
		img = strings.TrimRight(p.settings.ImageBaseURL, "/") + img
	}
	md.ImageURL = img

	if genres, ok := raw["genres"].([]any); ok {
		for _, g := range genres {
			switch v := g.(type) {
			case string:
				md.Genres = append(md.Genres, v)
			case map[string]any:
				if name, ok := v["name"].(string); ok {
					md.Genres = append(md.Genres, name)
				}
			}
		}
	}
	return md
}

func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(raw map[string]any, keys ...string) float64 {
	for _, k := range keys {
		switch v := raw[k].(type) {
		case float64:
			return v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f
			}
		}
	}
	return 0
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
