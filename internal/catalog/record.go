package catalog

import (
	"math"
	"strconv"
	"strings"
)

// record is one source row keyed by lower-case column name. Multi-valued
// columns carry several entries.
type record map[string][]string

func (r record) first(names ...string) (string, bool) {
	for _, n := range names {
		if vals, ok := r[n]; ok && len(vals) > 0 && strings.TrimSpace(vals[0]) != "" {
			return strings.TrimSpace(vals[0]), true
		}
	}
	return "", false
}

func (r record) str(names ...string) string {
	v, _ := r.first(names...)
	return v
}

func (r record) list(names ...string) []string {
	for _, n := range names {
		vals, ok := r[n]
		if !ok || len(vals) == 0 {
			continue
		}
		var out []string
		for _, v := range vals {
			out = append(out, splitList(v)...)
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (r record) float(names ...string) (float64, bool) {
	v, ok := r.first(names...)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (r record) boolean(names ...string) bool {
	v, _ := r.first(names...)
	switch strings.ToLower(v) {
	case "1", "1.0", "t", "true", "yes", "y":
		return true
	}
	return false
}

// Column aliases cover both the course and the movie exports.
var (
	idColumns          = []string{"id", "course_id", "movie_id"}
	titleColumns       = []string{"title", "course_title", "name"}
	descriptionColumns = []string{"description", "overview"}
	headlineColumns    = []string{"headline", "tagline"}
	peopleColumns      = []string{"instructors", "instructor", "visible_instructors", "cast"}
	categoryColumns    = []string{"categories", "category", "genres", "primary_category"}
	levelColumns       = []string{"level", "instructional_level"}
	languageColumns    = []string{"languages", "language", "all_languages", "spoken_languages", "original_language"}
	popularityColumns  = []string{"num_subscribers", "subscribers", "popularity"}
	reviewColumns      = []string{"num_reviews", "vote_count"}
	imageColumns       = []string{"image_url", "poster_path", "image_480x270"}
)

// toItem maps a source row onto Item. It never fails; missing values stay
// zero and Build decides whether the row is usable.
func (r record) toItem(sourceRow int) Item {
	it := Item{
		Title:       r.str(titleColumns...),
		Description: r.str(descriptionColumns...),
		Headline:    r.str(headlineColumns...),
		People:      r.list(peopleColumns...),
		Categories:  r.list(categoryColumns...),
		Level:       r.str(levelColumns...),
		Languages:   r.list(languageColumns...),
		IsPaid:      r.boolean("is_paid", "paid"),
		Adult:       r.boolean("adult"),
		URL:         r.str("url", "homepage"),
		ImageURL:    r.str(imageColumns...),
		Price:       r.str("price"),
		SourceRow:   sourceRow,
	}

	if id, ok := r.float(idColumns...); ok && id == math.Trunc(id) {
		it.ID = int64(id)
		it.HasID = true
	}

	it.RatingScale = 5
	if v, ok := r.float("rating", "avg_rating"); ok {
		it.Rating = v
	} else if v, ok := r.float("vote_average"); ok {
		it.Rating = v
		it.RatingScale = 10
	}
	if scale, ok := r.float("rating_scale"); ok && (scale == 5 || scale == 10) {
		it.RatingScale = scale
	}

	if v, ok := r.float(popularityColumns...); ok {
		it.Popularity = v
	}
	if v, ok := r.float(reviewColumns...); ok {
		it.NumReviews = int64(v)
	}
	return it
}

// splitList splits a flattened list cell such as "a|b", "a, b" or the
// Python repr "['a', 'b']".
func splitList(v string) []string {
	v = strings.TrimSpace(v)
	v = strings.TrimPrefix(v, "[")
	v = strings.TrimSuffix(v, "]")
	if v == "" {
		return nil
	}
	sep := ","
	if strings.Contains(v, "|") {
		sep = "|"
	}
	var out []string
	for _, part := range strings.Split(v, sep) {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
