package recommendation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/internal/metrics"
	"github.com/dustin/coursemate-backend/internal/search"
	"github.com/dustin/coursemate-backend/internal/similarity"
	"github.com/dustin/coursemate-backend/pkg/logger"
)

// Options are the parsed recommendation settings
type Options struct {
	DefaultLimit       int
	MaxLimit           int
	OverSelectFactor   int
	MinCandidates      int
	RequestTimeout     time.Duration
	TopRatedMinReviews int64
	TopRatedMinRating  float64
}

// NewOptions parses recommendation configuration with validation and defaults
func NewOptions(cfg *config.RecommendConfig) (Options, error) {
	opts := Options{
		DefaultLimit:       10,
		MaxLimit:           50,
		OverSelectFactor:   5,
		MinCandidates:      50,
		RequestTimeout:     5 * time.Second,
		TopRatedMinReviews: 10,
		TopRatedMinRating:  4.0,
	}
	if cfg == nil {
		return opts, nil
	}

	ints := []struct {
		name string
		raw  string
		dst  *int
	}{
		{"default limit", cfg.DefaultLimit, &opts.DefaultLimit},
		{"max limit", cfg.MaxLimit, &opts.MaxLimit},
		{"over-select factor", cfg.OverSelectFactor, &opts.OverSelectFactor},
		{"min candidates", cfg.MinCandidates, &opts.MinCandidates},
	}
	for _, f := range ints {
		if f.raw == "" {
			continue
		}
		n, err := strconv.Atoi(f.raw)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid %s '%s': must be a positive integer", f.name, f.raw)
		}
		*f.dst = n
	}
	if opts.DefaultLimit > opts.MaxLimit {
		return opts, fmt.Errorf("invalid default limit '%d': exceeds max limit %d", opts.DefaultLimit, opts.MaxLimit)
	}

	if cfg.RequestTimeout != "" {
		d, err := time.ParseDuration(cfg.RequestTimeout)
		if err != nil || d <= 0 {
			return opts, fmt.Errorf("invalid request timeout '%s': must be a positive duration", cfg.RequestTimeout)
		}
		opts.RequestTimeout = d
	}
	if cfg.TopRatedMinReviews != "" {
		n, err := strconv.ParseInt(cfg.TopRatedMinReviews, 10, 64)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("invalid top-rated min reviews '%s': must be a non-negative integer", cfg.TopRatedMinReviews)
		}
		opts.TopRatedMinReviews = n
	}
	if cfg.TopRatedMinRating != "" {
		v, err := strconv.ParseFloat(cfg.TopRatedMinRating, 64)
		if err != nil || v < 0 || v > 5 {
			return opts, fmt.Errorf("invalid top-rated min rating '%s': must be between 0 and 5", cfg.TopRatedMinRating)
		}
		opts.TopRatedMinRating = v
	}
	return opts, nil
}

// service implements the Service interface
type service struct {
	store    *catalog.Store
	engine   *similarity.Engine
	matcher  *search.Matcher
	rules    *RuleEngine
	enricher Enricher
	opts     Options
	intn     func(n int) int
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

// NewService creates a new recommendation service. enricher may be nil.
func NewService(store *catalog.Store, engine *similarity.Engine, matcher *search.Matcher, enricher Enricher, opts Options, m *metrics.Metrics, log *logger.Logger) Service {
	return &service{
		store:    store,
		engine:   engine,
		matcher:  matcher,
		rules:    NewRuleEngine(store, log),
		enricher: enricher,
		opts:     opts,
		intn:     rand.IntN,
		metrics:  m,
		logger:   log.WithComponent("recommendation-service"),
	}
}

func (s *service) RequestTimeout() time.Duration {
	return s.opts.RequestTimeout
}

// BySeed returns items similar to the seed. Candidates are over-selected and
// post-filtered; if filtering starves the result, the scan is repeated with
// the filter applied in place. Without vectors, items are ranked by rating
// within the seed's categories.
func (s *service) BySeed(ctx context.Context, req SeedRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := s.limit(req.Limit)

	row, ok := s.store.RowByID(req.ID)
	if !ok {
		return nil, fmt.Errorf("seed %d: %w", req.ID, catalog.ErrNotFound)
	}
	pred := req.Filters.predicate()

	k := similarity.OverSelect(limit, s.opts.OverSelectFactor, s.opts.MinCandidates)
	hits, err := s.engine.Nearest(ctx, row, k, nil)
	if errors.Is(err, similarity.ErrNoEmbedding) {
		s.logger.Info("No embedding for item " + strconv.FormatInt(req.ID, 10) + ", using rule-based fallback")
		return s.finish(ModeSimilar, FallbackRuleBased, s.rules.SameCategory(row, limit, pred)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find similar items: %w", err)
	}

	items := s.keep(hits, pred, limit)
	if len(items) < limit && len(hits) == k {
		s.logger.Debug("Post-filter kept " + strconv.Itoa(len(items)) + " of " + strconv.Itoa(k) + " candidates, rescanning with filter")
		hits, err = s.engine.Nearest(ctx, row, limit, pred)
		if err != nil {
			return nil, fmt.Errorf("failed to find similar items: %w", err)
		}
		items = s.keep(hits, nil, limit)
	}
	return s.finish(ModeSimilar, FallbackNone, items), nil
}

// RandomSample returns up to limit distinct items chosen uniformly from the
// rows that pass the filters.
func (s *service) RandomSample(ctx context.Context, req ListRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := s.limit(req.Limit)
	rows := s.store.Mask(req.Filters.predicate())

	n := min(limit, len(rows))
	for i := 0; i < n; i++ {
		j := i + s.intn(len(rows)-i)
		rows[i], rows[j] = rows[j], rows[i]
	}

	items := make([]Ranked, n)
	for i, row := range rows[:n] {
		it := s.store.Item(row)
		items[i] = Ranked{Item: it, Score: it.Rating5()}
	}
	return s.finish(ModeSample, FallbackRandomSample, items), nil
}

// ByQuery resolves a free-text title query
func (s *service) ByQuery(ctx context.Context, query string, limit int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", ErrMalformedQuery)
	}

	hits := s.matcher.Match(ctx, query, s.limit(limit))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.finish(ModeSearch, FallbackNone, s.keep(hits, nil, len(hits))), nil
}

func (s *service) ByProfile(ctx context.Context, p Profile) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items, err := s.rules.Profile(p, s.limit(p.Limit))
	if err != nil {
		return nil, err
	}
	return s.finish(ModeProfile, FallbackNone, items), nil
}

// TopRated ranks by rating among items with enough reviews. When that floor
// leaves fewer than limit items, the unfiltered rating order is used.
func (s *service) TopRated(ctx context.Context, req ListRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := s.limit(req.Limit)
	pred := req.Filters.predicate()

	floor := catalog.And(pred, catalog.RatingAtLeast(s.opts.TopRatedMinRating), catalog.MinReviews(s.opts.TopRatedMinReviews))
	rows := s.store.Filter(s.store.ByRating(), floor)
	if len(rows) < limit {
		s.logger.Debug("Top-rated floor kept " + strconv.Itoa(len(rows)) + " items, using unfiltered rating order")
		rows = s.store.Filter(s.store.ByRating(), pred)
	}
	return s.finish(ModeTopRated, FallbackNone, s.rules.rank(rows, limit, func(it *catalog.Item) float64 { return it.Rating5() })), nil
}

func (s *service) Trending(ctx context.Context, req ListRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows := s.store.Filter(s.store.ByPopularity(), req.Filters.predicate())
	return s.finish(ModeTrending, FallbackNone, s.rules.rank(rows, s.limit(req.Limit), func(it *catalog.Item) float64 { return it.Popularity })), nil
}

func (s *service) Categories() []catalog.CategoryCount {
	return s.store.Categories()
}

func (s *service) Status() Status {
	st := Status{
		CatalogItems:      s.store.Len(),
		SourceRows:        s.store.SourceRows(),
		Categories:        len(s.store.Categories()),
		VectorsLoaded:     s.store.HasVectors(),
		EnrichmentEnabled: s.enricher != nil && s.enricher.Enabled(),
		DegradedReasons:   []string{},
	}
	if m := s.store.Vectors(); m != nil {
		st.VectorDim = m.Dim()
	}
	if st.CatalogItems == 0 {
		st.DegradedReasons = append(st.DegradedReasons, "catalog unavailable")
	}
	if !st.VectorsLoaded {
		st.DegradedReasons = append(st.DegradedReasons, "vectors unavailable, similar items use rule-based ranking")
	}
	st.Degraded = len(st.DegradedReasons) > 0
	st.Ready = st.CatalogItems > 0
	return st
}

// Responses maps a result to its wire form, attaching provider metadata for
// the items the enricher could resolve.
func (s *service) Responses(ctx context.Context, res *Result) []ItemResponse {
	var extra map[int64]*Enrichment
	if s.enricher != nil && s.enricher.Enabled() && len(res.Items) > 0 {
		extra = s.enricher.EnrichBatch(ctx, res.IDs())
	}

	out := make([]ItemResponse, len(res.Items))
	for i, r := range res.Items {
		out[i] = ToResponse(r, extra[r.Item.ID])
	}
	return out
}

// limit applies the default to unset limits and caps the rest
func (s *service) limit(n int) int {
	if n <= 0 {
		return s.opts.DefaultLimit
	}
	return min(n, s.opts.MaxLimit)
}

// keep converts scored rows to ranked items, dropping rows rejected by pred
func (s *service) keep(hits []catalog.Scored, pred catalog.Predicate, limit int) []Ranked {
	out := make([]Ranked, 0, min(limit, len(hits)))
	for _, h := range hits {
		if len(out) == limit {
			break
		}
		it := s.store.Item(h.Row)
		if pred != nil && !pred(it) {
			continue
		}
		out = append(out, Ranked{Item: it, Score: h.Score})
	}
	return out
}

func (s *service) finish(mode, fallback string, items []Ranked) *Result {
	s.metrics.Recommendation(mode, fallback)
	if fallback != FallbackNone {
		s.logger.Info("Serving " + strconv.Itoa(len(items)) + " " + mode + " items via " + fallback + " fallback")
	}
	return &Result{Mode: mode, Fallback: fallback, Items: items}
}
