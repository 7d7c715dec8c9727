package adapter

import (
	"context"

	"github.com/dustin/coursemate-backend/internal/enrichment"
	"github.com/dustin/coursemate-backend/internal/recommendation"
)

// MetadataSource is the part of enrichment.Enricher the recommendation
// service depends on
type MetadataSource interface {
	EnrichBatch(ctx context.Context, ids []int64) map[int64]*enrichment.Metadata
	Enabled() bool
}

// EnricherToRecommendationEnricher adapts enrichment.Enricher to recommendation.Enricher
type EnricherToRecommendationEnricher struct {
	source MetadataSource
}

// NewEnricherToRecommendationEnricher creates a new adapter
func NewEnricherToRecommendationEnricher(source MetadataSource) recommendation.Enricher {
	return &EnricherToRecommendationEnricher{
		source: source,
	}
}

func (a *EnricherToRecommendationEnricher) Enabled() bool {
	return a.source != nil && a.source.Enabled()
}

func (a *EnricherToRecommendationEnricher) EnrichBatch(ctx context.Context, ids []int64) map[int64]*recommendation.Enrichment {
	out := make(map[int64]*recommendation.Enrichment, len(ids))
	if !a.Enabled() {
		return out
	}

	// Convert enrichment.Metadata to recommendation.Enrichment
	for id, md := range a.source.EnrichBatch(ctx, ids) {
		if md == nil {
			continue
		}
		out[id] = &recommendation.Enrichment{
			Overview:    md.Overview,
			Tagline:     md.Tagline,
			ImageURL:    md.ImageURL,
			Homepage:    md.Homepage,
			ReleaseDate: md.ReleaseDate,
			Runtime:     md.Runtime,
			Rating:      md.Rating,
			Genres:      md.Genres,
		}
	}
	return out
}
