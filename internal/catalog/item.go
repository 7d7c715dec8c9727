// Package catalog holds the in-memory item table that every query reads.
package catalog

import "errors"

var (
	// ErrDataUnavailable marks a missing or corrupt catalog or vector source.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrNotFound is returned when an id is not in the catalog.
	ErrNotFound = errors.New("item not found")
)

// Item is one catalog row. Items are read-only once the Store is built.
type Item struct {
	ID int64
	// HasID is set by loaders when the id column was present, so that a
	// real id 0 is kept.
	HasID       bool
	Title       string
	Description string
	Headline    string
	People      []string // instructors or cast
	Categories  []string // category or genres
	Level       string
	Languages   []string

	Rating      float64
	RatingScale float64 // 5 or 10
	Popularity  float64 // subscribers or provider popularity
	NumReviews  int64

	IsPaid bool
	Adult  bool

	URL      string
	ImageURL string
	Price    string

	// SourceRow is the row position in the source file, used to align
	// vectors when rows are dropped at load.
	SourceRow int
}

func (it *Item) hasID() bool {
	return it.HasID || it.ID != 0
}

// Rating5 returns the rating on a 0-5 scale.
func (it *Item) Rating5() float64 {
	if it.RatingScale == 10 {
		return it.Rating / 2
	}
	return it.Rating
}

// Rating10 returns the rating on a 0-10 scale.
func (it *Item) Rating10() float64 {
	return it.Rating5() * 2
}

// HasCategory reports whether any of the item's categories equals name,
// ignoring case.
func (it *Item) HasCategory(name string) bool {
	for _, c := range it.Categories {
		if equalFold(c, name) {
			return true
		}
	}
	return false
}

// Scored is one entry of a ranked result.
type Scored struct {
	Row   int
	Score float64
}
