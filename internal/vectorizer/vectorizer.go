// Package vectorizer builds the TF-IDF feature vectors for catalog items.
package vectorizer

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/dustin/coursemate-backend/internal/textnorm"
	"github.com/dustin/coursemate-backend/internal/vectors"
	"github.com/goccy/go-json"
)

// Options bound the vocabulary.
type Options struct {
	MaxFeatures int
	MinDF       int     // absolute document count
	MaxDF       float64 // fraction of documents
}

// DefaultOptions matches the offline build: 5000 terms, df in [2, 0.8n].
func DefaultOptions() Options {
	return Options{MaxFeatures: 5000, MinDF: 2, MaxDF: 0.8}
}

// NewOptions parses vectorizer settings with validation and defaults
func NewOptions(cfg *config.VectorizerConfig) (Options, error) {
	opts := DefaultOptions()
	if cfg == nil {
		return opts, nil
	}

	if cfg.MaxFeatures != "" {
		n, err := strconv.Atoi(cfg.MaxFeatures)
		if err != nil || n <= 0 {
			return opts, fmt.Errorf("invalid max features '%s': must be a positive integer", cfg.MaxFeatures)
		}
		opts.MaxFeatures = n
	}
	if cfg.MinDF != "" {
		n, err := strconv.Atoi(cfg.MinDF)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("invalid min df '%s': must be an integer >= 1", cfg.MinDF)
		}
		opts.MinDF = n
	}
	if cfg.MaxDF != "" {
		f, err := strconv.ParseFloat(cfg.MaxDF, 64)
		if err != nil || f <= 0 || f > 1 {
			return opts, fmt.Errorf("invalid max df '%s': must be in (0, 1]", cfg.MaxDF)
		}
		opts.MaxDF = f
	}
	return opts, nil
}

// Vocabulary maps terms to dimensions. It is frozen once Fit returns.
type Vocabulary struct {
	Terms   []string  `json:"terms"`
	IDF     []float64 `json:"idf"`
	NumDocs int       `json:"num_docs"`

	index map[string]int
}

// Len returns the number of dimensions.
func (v *Vocabulary) Len() int { return len(v.Terms) }

// Index returns the dimension of term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

func (v *Vocabulary) buildIndex() {
	v.index = make(map[string]int, len(v.Terms))
	for i, t := range v.Terms {
		v.index[t] = i
	}
}

// Document joins an item's text fields in fixed order and normalises them.
func Document(it *catalog.Item) string {
	parts := []string{it.Title, it.Headline, it.Description}
	parts = append(parts, it.Categories...)
	parts = append(parts, it.People...)
	parts = append(parts, it.Level)
	return textnorm.Normalize(strings.Join(parts, " "))
}

// Tokenize splits a normalised document into runs of two or more word
// runes, drops stop words and appends bigrams of the surviving tokens.
func Tokenize(doc string) []string {
	var words []string
	for _, w := range strings.FieldsFunc(doc, func(r rune) bool { return !isWordRune(r) }) {
		if len([]rune(w)) < 2 {
			continue
		}
		if _, stop := englishStopWords[w]; stop {
			continue
		}
		words = append(words, w)
	}

	terms := make([]string, 0, 2*len(words))
	terms = append(terms, words...)
	for i := 0; i+1 < len(words); i++ {
		terms = append(terms, words[i]+" "+words[i+1])
	}
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Fit builds a vocabulary over the corpus. Terms outside the document
// frequency band are dropped and the rest are ranked by corpus frequency
// descending, ties lexicographic, keeping at most MaxFeatures.
func Fit(corpus []string, opts Options) *Vocabulary {
	vocab := &Vocabulary{NumDocs: len(corpus)}
	if len(corpus) == 0 {
		vocab.buildIndex()
		return vocab
	}

	df := map[string]int{}
	tf := map[string]int{}
	for _, doc := range corpus {
		seen := map[string]struct{}{}
		for _, term := range Tokenize(doc) {
			tf[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	maxDocs := opts.MaxDF * float64(len(corpus))
	var kept []string
	for term, n := range df {
		if n >= opts.MinDF && float64(n) <= maxDocs {
			kept = append(kept, term)
		}
	}
	sort.Slice(kept, func(a, b int) bool {
		if tf[kept[a]] != tf[kept[b]] {
			return tf[kept[a]] > tf[kept[b]]
		}
		return kept[a] < kept[b]
	})
	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		kept = kept[:opts.MaxFeatures]
	}

	n := float64(len(corpus))
	vocab.Terms = kept
	vocab.IDF = make([]float64, len(kept))
	for i, term := range kept {
		vocab.IDF[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	vocab.buildIndex()
	return vocab
}

// Transform weights each document by raw term frequency times IDF and
// L2-normalises the result. Documents with no known terms stay zero.
func Transform(corpus []string, vocab *Vocabulary) []vectors.Sparse {
	out := make([]vectors.Sparse, len(corpus))
	for i, doc := range corpus {
		counts := map[int]int{}
		for _, term := range Tokenize(doc) {
			if dim, ok := vocab.Index(term); ok {
				counts[dim]++
			}
		}
		var v vectors.Sparse
		for dim, c := range counts {
			v.Indices = append(v.Indices, int32(dim))
			v.Values = append(v.Values, float32(float64(c)*vocab.IDF[dim]))
		}
		out[i] = vectors.SortSparse(v).Normalized()
	}
	return out
}

// BuildMatrix fits and transforms the store's items. The matrix has one row
// per source row so it lines up with the catalog file; rows dropped during
// validation stay zero.
func BuildMatrix(store *catalog.Store, opts Options) (*vectors.Matrix, *Vocabulary, error) {
	corpus := make([]string, store.Len())
	for i := range corpus {
		corpus[i] = Document(store.Item(i))
	}
	vocab := Fit(corpus, opts)

	rows := make([]vectors.Sparse, store.SourceRows())
	for i, v := range Transform(corpus, vocab) {
		rows[store.Item(i).SourceRow] = v
	}
	m, err := vectors.NewMatrix(vocab.Len(), rows)
	if err != nil {
		return nil, nil, fmt.Errorf("build feature matrix: %w", err)
	}
	return m, vocab, nil
}

// SaveVocabulary writes vocab as JSON.
func SaveVocabulary(path string, vocab *Vocabulary) error {
	data, err := json.Marshal(vocab)
	if err != nil {
		return fmt.Errorf("failed to marshal vocabulary: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
