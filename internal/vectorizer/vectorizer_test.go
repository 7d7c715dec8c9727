package vectorizer

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/dustin/coursemate-backend/config"
	"github.com/dustin/coursemate-backend/internal/catalog"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func looseOptions() Options {
	return Options{MaxFeatures: 100, MinDF: 1, MaxDF: 1.0}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t,
		[]string{"python", "data", "science", "python data", "data science"},
		Tokenize("python for data science"))
	assert.Empty(t, Tokenize("a i of the"))
	assert.Empty(t, Tokenize("c + x"))
	assert.Equal(t, []string{"café", "crème", "café crème"}, Tokenize("café-crème"))
}

func TestFit_EmptyCorpus(t *testing.T) {
	vocab := Fit(nil, DefaultOptions())

	assert.Equal(t, 0, vocab.Len())
	assert.Empty(t, Transform(nil, vocab))
}

func TestFit_DeterministicOrder(t *testing.T) {
	corpus := []string{"python data python", "data science", "python basics"}

	vocab := Fit(corpus, looseOptions())

	assert.Equal(t, []string{
		"python", "data",
		"basics", "data python", "data science", "python basics", "python data", "science",
	}, vocab.Terms)
	assert.Equal(t, vocab.Terms, Fit(corpus, looseOptions()).Terms)

	// smooth idf: ln((1+n)/(1+df)) + 1
	assert.InDelta(t, math.Log(4.0/3.0)+1, vocab.IDF[0], 1e-12)
	assert.InDelta(t, math.Log(4.0/2.0)+1, vocab.IDF[2], 1e-12)
}

func TestFit_DocumentFrequencyBand(t *testing.T) {
	corpus := []string{
		"python intro",
		"python advanced",
		"python golang",
		"golang web",
	}

	vocab := Fit(corpus, Options{MaxFeatures: 10, MinDF: 2, MaxDF: 0.7})

	// python appears in 3/4 docs (> 0.7), singletons fall under min_df.
	assert.Equal(t, []string{"golang"}, vocab.Terms)
}

func TestFit_MaxFeatures(t *testing.T) {
	corpus := []string{"alpha beta gamma", "alpha beta", "alpha"}

	vocab := Fit(corpus, Options{MaxFeatures: 3, MinDF: 1, MaxDF: 1.0})

	// "alpha beta" and "beta" tie on frequency; the lexicographic order wins.
	assert.Equal(t, []string{"alpha", "alpha beta", "beta"}, vocab.Terms)
}

func TestTransform_UnitVectors(t *testing.T) {
	corpus := []string{"python data python", "data science", "python basics", "zzz"}
	vocab := Fit(corpus[:3], looseOptions())

	vecs := Transform(corpus, vocab)

	require.Len(t, vecs, 4)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, vecs[i].Norm(), 1e-6, "doc %d", i)
		for j := 1; j < len(vecs[i].Indices); j++ {
			assert.Less(t, vecs[i].Indices[j-1], vecs[i].Indices[j])
		}
	}
	assert.Equal(t, 0, vecs[3].Len(), "unknown terms produce a zero vector")
}

func TestDocument_FieldOrder(t *testing.T) {
	it := &catalog.Item{
		Title:       "Intro To Python",
		Headline:    "Learn Fast",
		Description: "A course",
		Categories:  []string{"Development"},
		People:      []string{"Ana Ruiz"},
		Level:       "Beginner",
	}

	assert.Equal(t, "intro to python learn fast a course development ana ruiz beginner", Document(it))
}

func TestBuildMatrix(t *testing.T) {
	store, _ := catalog.Build([]catalog.Item{
		{ID: 1, Title: "Intro to Python", Categories: []string{"Programming"}},
		{ID: 2, Title: "Python for Data Science", Categories: []string{"Data"}, SourceRow: 1},
		{ID: 3, Title: "Java Basics", Categories: []string{"Programming"}, SourceRow: 2},
	})

	m, vocab, err := BuildMatrix(store, looseOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, m.Rows())
	assert.Equal(t, vocab.Len(), m.Dim())
	for i := 0; i < m.Rows(); i++ {
		assert.InDelta(t, 1.0, m.Row(i).Norm(), 1e-5)
	}
}

func TestBuildMatrix_KeepsSourceAlignment(t *testing.T) {
	store, report := catalog.Build([]catalog.Item{
		{ID: 1, Title: "Intro to Python", Categories: []string{"Programming"}},
		{ID: 0, Title: "Missing id", SourceRow: 1},
		{ID: 3, Title: "Python Basics", Categories: []string{"Programming"}, SourceRow: 2},
	})
	require.Equal(t, 2, report.Kept)

	m, _, err := BuildMatrix(store, looseOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows())
	assert.Zero(t, m.Row(1).Norm())

	aligned, err := store.WithVectors(m)
	require.NoError(t, err)
	assert.True(t, aligned.HasVectors())
	assert.Equal(t, 2, aligned.Vectors().Rows())
}

func TestSaveVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.json")
	vocab := Fit([]string{"python data", "python web"}, looseOptions())

	require.NoError(t, SaveVocabulary(path, vocab))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var saved struct {
		Terms   []string  `json:"terms"`
		IDF     []float64 `json:"idf"`
		NumDocs int       `json:"num_docs"`
	}
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, vocab.Terms, saved.Terms)
	assert.Len(t, saved.IDF, len(saved.Terms))
	assert.Equal(t, 2, saved.NumDocs)
	assert.Equal(t, "python", saved.Terms[0])
}

func TestNewOptions(t *testing.T) {
	opts, err := NewOptions(&config.VectorizerConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	opts, err = NewOptions(&config.VectorizerConfig{MaxFeatures: "200", MinDF: "1", MaxDF: "0.5"})
	require.NoError(t, err)
	assert.Equal(t, Options{MaxFeatures: 200, MinDF: 1, MaxDF: 0.5}, opts)

	for _, bad := range []config.VectorizerConfig{{MaxFeatures: "x"}, {MinDF: "0"}, {MaxDF: "1.5"}} {
		_, err := NewOptions(&bad)
		assert.Error(t, err)
	}
}
