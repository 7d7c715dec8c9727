package recommendation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/pkg/logger"
)

// Profile scoring constants. Base scores are ratings on the 0-10 scale.
const (
	likedBoost     = 2.0
	watchlistBoost = 1.5
	defaultAge     = 25
	adultAge       = 18
)

// allAgesCategory is dropped from profile results once the user is an adult
const allAgesCategory = "Animation"

// moodCategories maps a mood to the categories it selects
var moodCategories = map[string][]string{
	"happy":       {"Comedy", "Animation", "Family", "Music"},
	"excited":     {"Action", "Adventure", "Thriller", "Science Fiction"},
	"relaxed":     {"Drama", "Documentary", "History"},
	"adventurous": {"Adventure", "Fantasy", "Action"},
	"romantic":    {"Romance", "Drama"},
	"mysterious":  {"Mystery", "Thriller", "Crime"},
}

// RuleEngine ranks items from catalog fields alone. It serves profile
// requests and stands in for the similarity engine when vectors are missing.
type RuleEngine struct {
	store  *catalog.Store
	logger *logger.Logger
}

// NewRuleEngine creates a rule-based engine over store
func NewRuleEngine(store *catalog.Store, log *logger.Logger) *RuleEngine {
	return &RuleEngine{
		store:  store,
		logger: log.WithComponent("rule-engine"),
	}
}

// Profile ranks the items that pass the profile's filters by rating plus
// liked and watchlist boosts. Ties are broken by ascending id.
func (r *RuleEngine) Profile(p Profile, limit int) ([]Ranked, error) {
	pred, err := profilePredicate(p)
	if err != nil {
		return nil, err
	}

	liked := idSet(p.Liked)
	watch := idSet(p.Watchlist)
	rows := r.store.Mask(pred)

	ranked := make([]Ranked, 0, len(rows))
	for _, row := range rows {
		it := r.store.Item(row)
		score := it.Rating10()
		if _, ok := liked[it.ID]; ok {
			score += likedBoost
		}
		if _, ok := watch[it.ID]; ok {
			score += watchlistBoost
		}
		ranked = append(ranked, Ranked{Item: it, Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Item.ID < ranked[j].Item.ID
	})

	r.logger.Debug("Profile mood '" + p.Mood + "' matched " + strconv.Itoa(len(ranked)) + " items")
	return truncateRanked(ranked, limit), nil
}

// SameCategory ranks items sharing a category with the seed by rating. When
// no other item shares one, the whole catalog is ranked by rating instead.
func (r *RuleEngine) SameCategory(seedRow, limit int, pred catalog.Predicate) []Ranked {
	seed := r.store.Item(seedRow)
	notSeed := catalog.IDNotIn([]int64{seed.ID})

	var rows []int
	if len(seed.Categories) > 0 {
		rows = r.store.Filter(r.store.ByRating(), catalog.And(catalog.CategoryIn(seed.Categories), pred, notSeed))
	}
	if len(rows) == 0 {
		r.logger.Debug("No category peers for item " + strconv.FormatInt(seed.ID, 10) + ", ranking whole catalog")
		rows = r.store.Filter(r.store.ByRating(), catalog.And(pred, notSeed))
	}
	return r.rank(rows, limit, func(it *catalog.Item) float64 { return it.Rating5() })
}

func (r *RuleEngine) rank(rows []int, limit int, score func(*catalog.Item) float64) []Ranked {
	if limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([]Ranked, len(rows))
	for i, row := range rows {
		it := r.store.Item(row)
		out[i] = Ranked{Item: it, Score: score(it)}
	}
	return out
}

// MoodCategories returns the categories a mood selects, or nil for an
// unknown mood.
func MoodCategories(mood string) []string {
	return moodCategories[strings.ToLower(strings.TrimSpace(mood))]
}

func profilePredicate(p Profile) (catalog.Predicate, error) {
	age := defaultAge
	if p.Age != nil {
		if *p.Age < 0 {
			return nil, fmt.Errorf("%w: age must not be negative", ErrMalformedQuery)
		}
		age = *p.Age
	}

	var budget catalog.Predicate
	switch strings.ToLower(p.Budget) {
	case "", "any":
	case "free":
		budget = catalog.PaidIs(false)
	case "paid":
		budget = catalog.PaidIs(true)
	default:
		return nil, fmt.Errorf("%w: unknown budget '%s'", ErrMalformedQuery, p.Budget)
	}

	var skill catalog.Predicate
	switch strings.ToLower(p.SkillLevel) {
	case "beginner":
		skill = catalog.LevelExcludes("advanced")
	case "advanced":
		skill = catalog.LevelExcludes("beginner")
	}

	var safe catalog.Predicate
	if p.SafeMode {
		safe = catalog.NotAdult()
	}

	var ageRule catalog.Predicate
	if age >= adultAge {
		ageRule = catalog.CategoryNotIn([]string{allAgesCategory})
	}

	cats := append(append([]string{}, MoodCategories(p.Mood)...), p.Interests...)

	return catalog.And(
		catalog.LanguageIn(p.Languages),
		catalog.CategoryIn(cats),
		catalog.IDNotIn(p.Disliked),
		budget,
		safe,
		skill,
		ageRule,
	), nil
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func truncateRanked(r []Ranked, limit int) []Ranked {
	if limit < len(r) {
		return r[:limit]
	}
	return r
}
