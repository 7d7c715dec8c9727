package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/coursemate-backend/internal/textnorm"
	"github.com/dustin/coursemate-backend/internal/vectors"
)

// BuildReport summarises what Build kept and dropped.
type BuildReport struct {
	SourceRows   int
	Kept         int
	MissingTitle int
	MissingID    int
	DuplicateID  int
}

// CategoryCount is one entry of Store.Categories.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Store is the immutable in-memory catalog plus its aligned vector matrix.
// All slices returned by its methods are shared and must not be modified.
type Store struct {
	items      []Item
	byID       map[int64]int
	normTitles []string
	titleLens  []int

	byRating      []int
	byPopularity  []int
	maxPopularity float64
	categories    []CategoryCount

	sourceRows int
	vectors    *vectors.Matrix
}

// NewEmpty returns a store with no rows, used when the catalog is missing.
func NewEmpty() *Store {
	s, _ := Build(nil)
	return s
}

// Build validates raw rows and indexes them. Rows missing a title or an id
// are dropped, as are rows repeating an id already seen.
func Build(raw []Item) (*Store, BuildReport) {
	report := BuildReport{}
	s := &Store{byID: make(map[int64]int, len(raw))}

	for _, it := range raw {
		if it.SourceRow+1 > report.SourceRows {
			report.SourceRows = it.SourceRow + 1
		}
		if strings.TrimSpace(it.Title) == "" {
			report.MissingTitle++
			continue
		}
		if !it.hasID() {
			report.MissingID++
			continue
		}
		if _, dup := s.byID[it.ID]; dup {
			report.DuplicateID++
			continue
		}
		if it.RatingScale == 0 {
			it.RatingScale = 5
		}
		s.byID[it.ID] = len(s.items)
		s.items = append(s.items, it)
	}
	if report.SourceRows < len(raw) {
		report.SourceRows = len(raw)
	}
	report.Kept = len(s.items)
	s.sourceRows = report.SourceRows

	s.normTitles = make([]string, len(s.items))
	s.titleLens = make([]int, len(s.items))
	counts := map[string]int{}
	display := map[string]string{}
	for i := range s.items {
		it := &s.items[i]
		s.normTitles[i] = textnorm.Normalize(it.Title)
		s.titleLens[i] = len([]rune(s.normTitles[i]))
		if it.Popularity > s.maxPopularity {
			s.maxPopularity = it.Popularity
		}
		for _, c := range it.Categories {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" {
				continue
			}
			if _, ok := display[key]; !ok {
				display[key] = strings.TrimSpace(c)
			}
			counts[key]++
		}
	}
	for key, n := range counts {
		s.categories = append(s.categories, CategoryCount{Name: display[key], Count: n})
	}
	sort.Slice(s.categories, func(a, b int) bool {
		if s.categories[a].Count != s.categories[b].Count {
			return s.categories[a].Count > s.categories[b].Count
		}
		return s.categories[a].Name < s.categories[b].Name
	})

	s.byRating = s.sortedRows(func(it *Item) float64 { return it.Rating5() })
	s.byPopularity = s.sortedRows(func(it *Item) float64 { return it.Popularity })

	return s, report
}

// sortedRows orders rows by key descending, ties by ascending row.
func (s *Store) sortedRows(key func(*Item) float64) []int {
	rows := make([]int, len(s.items))
	for i := range rows {
		rows[i] = i
	}
	sort.SliceStable(rows, func(a, b int) bool {
		return key(&s.items[rows[a]]) > key(&s.items[rows[b]])
	})
	return rows
}

// WithVectors returns a copy of the store carrying m. m must have one row
// per source row; when Build dropped rows, m is realigned by SourceRow.
func (s *Store) WithVectors(m *vectors.Matrix) (*Store, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil vector matrix", ErrDataUnavailable)
	}
	if m.Rows() != s.sourceRows {
		return nil, fmt.Errorf("%w: vector file has %d rows, catalog source has %d",
			ErrDataUnavailable, m.Rows(), s.sourceRows)
	}

	aligned := m
	if len(s.items) != s.sourceRows || !s.identityRows() {
		rows := make([]int, len(s.items))
		for i := range s.items {
			rows[i] = s.items[i].SourceRow
		}
		var err error
		if aligned, err = m.Select(rows); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
		}
	}

	out := *s
	out.vectors = aligned
	return &out, nil
}

func (s *Store) identityRows() bool {
	for i := range s.items {
		if s.items[i].SourceRow != i {
			return false
		}
	}
	return true
}

// Len returns the number of rows.
func (s *Store) Len() int { return len(s.items) }

// SourceRows returns the number of rows in the source before validation.
func (s *Store) SourceRows() int { return s.sourceRows }

// Item returns the item at row.
func (s *Store) Item(row int) *Item { return &s.items[row] }

// RowByID returns the row holding id.
func (s *Store) RowByID(id int64) (int, bool) {
	row, ok := s.byID[id]
	return row, ok
}

// ItemByID looks an item up by id.
func (s *Store) ItemByID(id int64) (*Item, error) {
	row, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return &s.items[row], nil
}

// NormalizedTitle returns the normalised title of row.
func (s *Store) NormalizedTitle(row int) string { return s.normTitles[row] }

// TitleLen returns the rune length of the normalised title of row.
func (s *Store) TitleLen(row int) int { return s.titleLens[row] }

// ByRating returns all rows by rating descending, ties by row.
func (s *Store) ByRating() []int { return s.byRating }

// ByPopularity returns all rows by popularity descending, ties by row.
func (s *Store) ByPopularity() []int { return s.byPopularity }

// MaxPopularity returns the largest popularity in the catalog.
func (s *Store) MaxPopularity() float64 { return s.maxPopularity }

// Categories lists distinct categories, most common first.
func (s *Store) Categories() []CategoryCount { return s.categories }

// Vectors returns the feature matrix, or nil when none was loaded.
func (s *Store) Vectors() *vectors.Matrix { return s.vectors }

// HasVectors reports whether a feature matrix is attached.
func (s *Store) HasVectors() bool { return s.vectors != nil }

// Mask returns the rows accepted by pred, in row order.
func (s *Store) Mask(pred Predicate) []int {
	var rows []int
	for i := range s.items {
		if pred == nil || pred(&s.items[i]) {
			rows = append(rows, i)
		}
	}
	return rows
}

// Filter keeps the rows accepted by pred, preserving order.
func (s *Store) Filter(rows []int, pred Predicate) []int {
	if pred == nil {
		return rows
	}
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		if pred(&s.items[r]) {
			out = append(out, r)
		}
	}
	return out
}
