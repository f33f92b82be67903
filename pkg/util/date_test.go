package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-10-10",
		"20241010",
		"2024-10-10T10:10:10Z",
		strconv.FormatInt(time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix(), 10),
	} {
		got, ok := ParseDate(s)
		require.True(t, ok, s)
		assert.True(t, want.Equal(got), "%s -> %v", s, got)
	}
}

func TestParseDateRejects(t *testing.T) {
	for _, s := range []string{"", "2024-13-01", "yesterday", "42"} {
		_, ok := ParseDate(s)
		assert.False(t, ok, s)
	}
	_, err := MustDate("nope")
	assert.Error(t, err)
}

func TestParseDateDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, ParseDateDefault("", def))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 5, ParseIntDefault("", 5))
	assert.Equal(t, 5, ParseIntDefault("x", 5))
	assert.Equal(t, 12, ParseIntDefault("12", 5))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, SplitList(" k1:9092, ,k2:9092 "))
	assert.Empty(t, SplitList(""))
}
