package adapter

import (
	"context"
	"testing"

	"github.com/dustin/coursemate-backend/internal/enrichment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock metadata source for testing
type mockSource struct {
	enabled bool
	data    map[int64]*enrichment.Metadata
	asked   []int64
}

func (m *mockSource) EnrichBatch(ctx context.Context, ids []int64) map[int64]*enrichment.Metadata {
	m.asked = append(m.asked, ids...)
	out := map[int64]*enrichment.Metadata{}
	for _, id := range ids {
		if md, ok := m.data[id]; ok {
			out[id] = md
		}
	}
	return out
}

func (m *mockSource) Enabled() bool {
	return m.enabled
}

func TestEnricherAdapter_EnrichBatch(t *testing.T) {
	source := &mockSource{
		enabled: true,
		data: map[int64]*enrichment.Metadata{
			550: {
				Overview:    "An insomniac office worker",
				Tagline:     "Mischief. Mayhem. Soap.",
				ImageURL:    "https://image.example.com/poster.jpg",
				ReleaseDate: "1999-10-15",
				Runtime:     139,
				Rating:      8.4,
				Genres:      []string{"Drama"},
			},
			13: nil,
		},
	}
	adapter := NewEnricherToRecommendationEnricher(source)

	got := adapter.EnrichBatch(context.Background(), []int64{550, 13, 7})

	assert.Equal(t, []int64{550, 13, 7}, source.asked)
	require.Len(t, got, 1)
	e := got[550]
	require.NotNil(t, e)
	assert.Equal(t, "An insomniac office worker", e.Overview)
	assert.Equal(t, "Mischief. Mayhem. Soap.", e.Tagline)
	assert.Equal(t, "https://image.example.com/poster.jpg", e.ImageURL)
	assert.Equal(t, "1999-10-15", e.ReleaseDate)
	assert.Equal(t, 139, e.Runtime)
	assert.Equal(t, 8.4, e.Rating)
	assert.Equal(t, []string{"Drama"}, e.Genres)
}

func TestEnricherAdapter_Disabled(t *testing.T) {
	source := &mockSource{enabled: false}
	adapter := NewEnricherToRecommendationEnricher(source)

	assert.False(t, adapter.Enabled())
	assert.Empty(t, adapter.EnrichBatch(context.Background(), []int64{1}))
	assert.Empty(t, source.asked)
}

func TestEnricherAdapter_NilSource(t *testing.T) {
	adapter := NewEnricherToRecommendationEnricher(nil)

	assert.False(t, adapter.Enabled())
	assert.Empty(t, adapter.EnrichBatch(context.Background(), []int64{1}))
}
