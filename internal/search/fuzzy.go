package search

import (
	"sort"
	"strings"
)

// Ratio is the normalised indel similarity of a and b on a 0-100 scale:
// 200 * LCS / (len(a) + len(b)), measured in runes.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 100
	}
	return 200 * float64(lcs(ra, rb)) / float64(len(ra)+len(rb))
}

func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// TokenSetRatio scores a query against a title independently of word order
// and duplicates. It is the higher of the classic set comparison (shared
// tokens against each side's remainder) and the mean, over query tokens, of
// each token's best match in the title. The second term keeps single-word
// typos such as "phyton" matching a longer title.
func TokenSetRatio(query, title string) float64 {
	qt, tt := tokenSet(query), tokenSet(title)
	if len(qt) == 0 || len(tt) == 0 {
		return 0
	}
	return max(setRatio(qt, tt), perTokenRatio(qt, tt))
}

func tokenSet(s string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, f := range strings.Fields(s) {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

func setRatio(qt, tt []string) float64 {
	inT := map[string]struct{}{}
	for _, t := range tt {
		inT[t] = struct{}{}
	}
	inQ := map[string]struct{}{}
	for _, q := range qt {
		inQ[q] = struct{}{}
	}

	var sect, onlyQ, onlyT []string
	for _, q := range qt {
		if _, ok := inT[q]; ok {
			sect = append(sect, q)
		} else {
			onlyQ = append(onlyQ, q)
		}
	}
	for _, t := range tt {
		if _, ok := inQ[t]; !ok {
			onlyT = append(onlyT, t)
		}
	}

	if len(sect) > 0 && (len(onlyQ) == 0 || len(onlyT) == 0) {
		return 100
	}

	base := strings.Join(sect, " ")
	withQ := strings.TrimSpace(base + " " + strings.Join(onlyQ, " "))
	withT := strings.TrimSpace(base + " " + strings.Join(onlyT, " "))

	best := Ratio(withQ, withT)
	if base != "" {
		best = max(best, Ratio(base, withQ), Ratio(base, withT))
	}
	return best
}

func perTokenRatio(qt, tt []string) float64 {
	var sum float64
	for _, q := range qt {
		var best float64
		for _, t := range tt {
			if r := Ratio(q, t); r > best {
				best = r
			}
		}
		sum += best
	}
	return sum / float64(len(qt))
}
