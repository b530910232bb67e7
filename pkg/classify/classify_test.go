package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgrab/pkg/errors"
)

func TestClassifyDocumentPage(t *testing.T) {
	tests := []struct {
		input string
		host  string
		slug  string
	}{
		{"https://telegra.ph/abc-123", "telegra.ph", "abc-123"},
		{"http://telegra.ph/Some-Title-04-26", "telegra.ph", "Some-Title-04-26"},
		{"telegra.ph/no-scheme", "telegra.ph", "no-scheme"},
		{"  https://graph.org/padded-07 \n", "graph.org", "padded-07"},
		{"https://graph.org/trailing/", "graph.org", "trailing"},
	}

	for _, tt := range tests {
		target, err := Classify(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, KindDocumentPage, target.Kind)
		assert.Equal(t, tt.host, target.Host)
		assert.Equal(t, tt.slug, target.Slug)
		assert.Equal(t, "https://"+tt.host+"/"+tt.slug, target.Key())
	}
}

func TestClassifyMessagePost(t *testing.T) {
	target, err := Classify("https://t.me/c/123456789/42")
	require.NoError(t, err)

	assert.Equal(t, KindMessagePost, target.Kind)
	assert.Equal(t, int64(123456789), target.ChannelID)
	assert.Equal(t, int64(42), target.PostID)
	assert.Equal(t, "https://t.me/c/123456789/42", target.Key())
}

func TestClassifyChannel(t *testing.T) {
	target, err := Classify("@foo")
	require.NoError(t, err)
	assert.Equal(t, KindMessageChannel, target.Kind)
	assert.Equal(t, "@foo", target.Handle)
	assert.False(t, target.All)

	target, err = Classify("all")
	require.NoError(t, err)
	assert.Equal(t, KindMessageChannel, target.Kind)
	assert.True(t, target.All)

	// Sentinel is case-insensitive
	target, err = Classify(" ALL ")
	require.NoError(t, err)
	assert.True(t, target.All)
}

func TestClassifyUnrecognized(t *testing.T) {
	inputs := []string{
		"not a url",
		"",
		"https://example.com/whatever",
		"https://t.me/c/abc/42",
		"https://t.me/c/123",
		"@x", // too short for a handle
	}

	for _, input := range inputs {
		_, err := Classify(input)
		require.Error(t, err, "input %q", input)

		var cerr *errors.Error
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, errors.ErrorTypeClassification, cerr.Type)
	}
}

func TestFindTargets(t *testing.T) {
	text := `check https://telegra.ph/first-1 and https://graph.org/second-2
also https://t.me/c/555/7 plus a repeat https://telegra.ph/first-1
and noise https://example.com/nope`

	targets := FindTargets(text)
	require.Len(t, targets, 3)

	keys := make([]string, 0, len(targets))
	for _, target := range targets {
		keys = append(keys, target.Key())
	}
	assert.Contains(t, keys, "https://telegra.ph/first-1")
	assert.Contains(t, keys, "https://graph.org/second-2")
	assert.Contains(t, keys, "https://t.me/c/555/7")
}

func TestFindTargetsEmptyText(t *testing.T) {
	assert.Empty(t, FindTargets(""))
	assert.Empty(t, FindTargets("no links here"))
}
