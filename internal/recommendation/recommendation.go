package recommendation

import (
	"context"
	"errors"
	"time"

	"github.com/dustin/coursemate-backend/internal/catalog"
)

// ErrMalformedQuery marks input rejected before it reaches the ranking code.
var ErrMalformedQuery = errors.New("malformed query")

// Recommendation modes, reported in every response envelope
const (
	ModeSimilar  = "similar"
	ModeSearch   = "search"
	ModeProfile  = "profile"
	ModeTopRated = "top_rated"
	ModeTrending = "trending"
	ModeSample   = "sample"
)

// Fallbacks name the documented degraded path a result came from
const (
	FallbackNone         = ""
	FallbackRuleBased    = "rule_based"
	FallbackRandomSample = "random_sample"
)

// Service defines the interface for recommendation business logic
type Service interface {
	BySeed(ctx context.Context, req SeedRequest) (*Result, error)
	RandomSample(ctx context.Context, req ListRequest) (*Result, error)
	ByQuery(ctx context.Context, query string, limit int) (*Result, error)
	ByProfile(ctx context.Context, p Profile) (*Result, error)
	TopRated(ctx context.Context, req ListRequest) (*Result, error)
	Trending(ctx context.Context, req ListRequest) (*Result, error)
	Categories() []catalog.CategoryCount
	Status() Status
	Responses(ctx context.Context, res *Result) []ItemResponse
	RequestTimeout() time.Duration
}

// Enricher supplies optional provider metadata for a batch of item ids.
// Ids missing from the returned map are served unenriched.
type Enricher interface {
	EnrichBatch(ctx context.Context, ids []int64) map[int64]*Enrichment
	Enabled() bool
}

// Filters are the per-request exclusions shared by every list mode
type Filters struct {
	Languages []string
	SafeMode  bool
	Exclude   []int64
}

func (f Filters) predicate() catalog.Predicate {
	var adult catalog.Predicate
	if f.SafeMode {
		adult = catalog.NotAdult()
	}
	return catalog.And(catalog.LanguageIn(f.Languages), adult, catalog.IDNotIn(f.Exclude))
}

// SeedRequest asks for items similar to the item with ID
type SeedRequest struct {
	ID    int64
	Limit int
	Filters
}

// ListRequest is a plain catalog listing
type ListRequest struct {
	Limit int
	Filters
}

// Profile describes a user's taste for rule-based recommendations
type Profile struct {
	Mood       string
	Interests  []string
	Age        *int
	Budget     string // free, paid or any
	SkillLevel string // beginner, intermediate or advanced
	Liked      []int64
	Disliked   []int64
	Watchlist  []int64
	Languages  []string
	SafeMode   bool
	Limit      int
}

// Ranked is one item of a result with the score that placed it
type Ranked struct {
	Item  *catalog.Item
	Score float64
}

// Result is an ordered recommendation list
type Result struct {
	Mode     string
	Fallback string
	Items    []Ranked
}

// IDs returns the item ids in result order
func (r *Result) IDs() []int64 {
	ids := make([]int64, len(r.Items))
	for i, it := range r.Items {
		ids[i] = it.Item.ID
	}
	return ids
}

// Enrichment is provider metadata attached to a served item
type Enrichment struct {
	Overview    string   `json:"overview,omitempty"`
	Tagline     string   `json:"tagline,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Homepage    string   `json:"homepage,omitempty"`
	ReleaseDate string   `json:"release_date,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	Rating      float64  `json:"rating,omitempty"`
	Genres      []string `json:"genres,omitempty"`
}

// ItemResponse is the wire form of a catalog item
type ItemResponse struct {
	ID          int64       `json:"id"`
	Title       string      `json:"title"`
	Headline    string      `json:"headline,omitempty"`
	Description string      `json:"description,omitempty"`
	People      []string    `json:"people"`
	Categories  []string    `json:"categories"`
	Level       string      `json:"level,omitempty"`
	Languages   []string    `json:"languages"`
	Rating      float64     `json:"rating"`
	RatingScale float64     `json:"rating_scale"`
	Popularity  float64     `json:"popularity"`
	NumReviews  int64       `json:"num_reviews"`
	IsPaid      bool        `json:"is_paid"`
	Adult       bool        `json:"adult"`
	URL         string      `json:"url,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
	Price       string      `json:"price,omitempty"`
	Score       float64     `json:"score"`
	Enrichment  *Enrichment `json:"enrichment,omitempty"`
}

// ToResponse maps a ranked item to its wire form. enrichment may be nil.
func ToResponse(r Ranked, enrichment *Enrichment) ItemResponse {
	it := r.Item
	resp := ItemResponse{
		ID:          it.ID,
		Title:       it.Title,
		Headline:    it.Headline,
		Description: it.Description,
		People:      nonNil(it.People),
		Categories:  nonNil(it.Categories),
		Level:       it.Level,
		Languages:   nonNil(it.Languages),
		Rating:      it.Rating,
		RatingScale: it.RatingScale,
		Popularity:  it.Popularity,
		NumReviews:  it.NumReviews,
		IsPaid:      it.IsPaid,
		Adult:       it.Adult,
		URL:         it.URL,
		ImageURL:    it.ImageURL,
		Price:       it.Price,
		Score:       r.Score,
		Enrichment:  enrichment,
	}
	if resp.ImageURL == "" && enrichment != nil {
		resp.ImageURL = enrichment.ImageURL
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// ListResponse is the envelope around every recommendation list
type ListResponse struct {
	Items       []ItemResponse `json:"items"`
	Count       int            `json:"count"`
	Mode        string         `json:"mode"`
	Fallback    string         `json:"fallback,omitempty"`
	Degraded    bool           `json:"degraded"`
	RequestID   string         `json:"request_id"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Status reports what the service is running on
type Status struct {
	Ready             bool     `json:"ready"`
	CatalogItems      int      `json:"catalog_items"`
	SourceRows        int      `json:"source_rows"`
	Categories        int      `json:"categories"`
	VectorsLoaded     bool     `json:"vectors_loaded"`
	VectorDim         int      `json:"vector_dim"`
	EnrichmentEnabled bool     `json:"enrichment_enabled"`
	Degraded          bool     `json:"degraded"`
	DegradedReasons   []string `json:"degraded_reasons"`
}
