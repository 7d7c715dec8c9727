package catalog

import "strings"

// Predicate is a side-effect-free test over one item.
type Predicate func(*Item) bool

// And composes predicates; nil entries are skipped and an empty And accepts
// everything.
func And(preds ...Predicate) Predicate {
	var active []Predicate
	for _, p := range preds {
		if p != nil {
			active = append(active, p)
		}
	}
	return func(it *Item) bool {
		for _, p := range active {
			if !p(it) {
				return false
			}
		}
		return true
	}
}

// LanguageIn accepts items that list any of langs. An empty set accepts all.
func LanguageIn(langs []string) Predicate {
	if len(langs) == 0 {
		return nil
	}
	return func(it *Item) bool {
		for _, have := range it.Languages {
			for _, want := range langs {
				if equalFold(have, want) {
					return true
				}
			}
		}
		return false
	}
}

// NotAdult rejects adult items.
func NotAdult() Predicate {
	return func(it *Item) bool { return !it.Adult }
}

// IDNotIn rejects items whose id is in ids.
func IDNotIn(ids []int64) Predicate {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return func(it *Item) bool {
		_, found := set[it.ID]
		return !found
	}
}

// RatingAtLeast accepts items rated at least min on the 0-5 scale.
func RatingAtLeast(min float64) Predicate {
	return func(it *Item) bool { return it.Rating5() >= min }
}

// MinReviews accepts items with at least n reviews.
func MinReviews(n int64) Predicate {
	return func(it *Item) bool { return it.NumReviews >= n }
}

// CategoryIn accepts items in any of cats. An empty set accepts all.
func CategoryIn(cats []string) Predicate {
	if len(cats) == 0 {
		return nil
	}
	return func(it *Item) bool {
		for _, c := range cats {
			if it.HasCategory(c) {
				return true
			}
		}
		return false
	}
}

// CategoryNotIn rejects items in any of cats.
func CategoryNotIn(cats []string) Predicate {
	if len(cats) == 0 {
		return nil
	}
	return func(it *Item) bool {
		for _, c := range cats {
			if it.HasCategory(c) {
				return false
			}
		}
		return true
	}
}

// PaidIs accepts items whose paid flag equals paid.
func PaidIs(paid bool) Predicate {
	return func(it *Item) bool { return it.IsPaid == paid }
}

// LevelExcludes rejects items whose level mentions word, e.g. "advanced"
// for a beginner profile.
func LevelExcludes(word string) Predicate {
	if word == "" {
		return nil
	}
	word = strings.ToLower(word)
	return func(it *Item) bool {
		return !strings.Contains(strings.ToLower(it.Level), word)
	}
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
