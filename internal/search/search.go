// Package search resolves free-text queries to catalog rows.
package search

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/internal/textnorm"
	"github.com/dustin/coursemate-backend/pkg/logger"
)

// DefaultThreshold is the minimum fuzzy score kept in the second stage.
const DefaultThreshold = 70.0

// Composite weights for substring matches.
const (
	ratingWeight     = 0.6
	popularityWeight = 0.4
)

// Matcher runs a substring stage and, only when that finds nothing, a fuzzy
// token-set stage over normalised titles.
type Matcher struct {
	store     *catalog.Store
	threshold float64
	logger    *logger.Logger
}

// NewMatcher parses the fuzzy threshold with validation and defaults
func NewMatcher(store *catalog.Store, threshold string, log *logger.Logger) (*Matcher, error) {
	t := DefaultThreshold
	if threshold != "" {
		v, err := strconv.ParseFloat(threshold, 64)
		if err != nil || v < 0 || v > 100 {
			return nil, fmt.Errorf("invalid fuzzy threshold '%s': must be between 0 and 100", threshold)
		}
		t = v
	}
	return &Matcher{
		store:     store,
		threshold: t,
		logger:    log.WithComponent("search-matcher"),
	}, nil
}

// Match returns at most limit rows for query, best first. An empty query
// or catalog yields an empty result.
func (m *Matcher) Match(ctx context.Context, query string, limit int) []catalog.Scored {
	q := textnorm.Normalize(query)
	if q == "" || limit <= 0 || m.store.Len() == 0 {
		return []catalog.Scored{}
	}

	if hits := m.substring(q); len(hits) > 0 {
		return truncate(hits, limit)
	}
	if ctx.Err() != nil {
		return []catalog.Scored{}
	}

	hits := m.fuzzy(q)
	m.logger.Debug(fmt.Sprintf("No substring match for %q, fuzzy stage kept %d", q, len(hits)))
	return truncate(hits, limit)
}

func (m *Matcher) substring(q string) []catalog.Scored {
	var rows []int
	var maxPop float64
	for row := 0; row < m.store.Len(); row++ {
		if strings.Contains(m.store.NormalizedTitle(row), q) {
			rows = append(rows, row)
			if p := m.store.Item(row).Popularity; p > maxPop {
				maxPop = p
			}
		}
	}

	hits := make([]catalog.Scored, len(rows))
	for i, row := range rows {
		it := m.store.Item(row)
		pop := 0.0
		if maxPop > 0 {
			pop = it.Popularity / maxPop
		}
		hits[i] = catalog.Scored{Row: row, Score: ratingWeight*it.Rating5() + popularityWeight*pop}
	}
	sortScored(hits)
	return hits
}

func (m *Matcher) fuzzy(q string) []catalog.Scored {
	minLen := len([]rune(q)) - 1
	var hits []catalog.Scored
	for row := 0; row < m.store.Len(); row++ {
		if m.store.TitleLen(row) < minLen {
			continue
		}
		if score := TokenSetRatio(q, m.store.NormalizedTitle(row)); score >= m.threshold {
			hits = append(hits, catalog.Scored{Row: row, Score: score})
		}
	}
	sortScored(hits)
	return hits
}

func sortScored(hits []catalog.Scored) {
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Score != hits[b].Score {
			return hits[a].Score > hits[b].Score
		}
		return hits[a].Row < hits[b].Row
	})
}

func truncate(hits []catalog.Scored, limit int) []catalog.Scored {
	if len(hits) > limit {
		return hits[:limit]
	}
	if hits == nil {
		return []catalog.Scored{}
	}
	return hits
}
