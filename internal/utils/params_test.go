package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"blank", "   ", nil},
		{"single", "en", []string{"en"}},
		{"trimmed", " en , fr ,", []string{"en", "fr"}},
		{"skips empty parts", "en,,de", []string{"en", "de"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.raw))
		})
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs("3, 1,42")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 42}, ids)

	ids, err = ParseIDs("")
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = ParseIDs("1,two")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid id 'two'")
}
