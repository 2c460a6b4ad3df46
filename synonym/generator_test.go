package synonym

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreweave/loreweave/errors"
)

func TestStaticGenerator(t *testing.T) {
	g := StaticGenerator{}

	syns, err := g.Synonyms(context.Background(), "mercury (element)", "", "en", 5)
	require.NoError(t, err)
	assert.NotEmpty(t, syns)
	assert.Contains(t, syns, "mercury", "parenthetical is stripped")
	for _, s := range syns {
		assert.NotEqual(t, "mercury (element)", s, "the input itself is never a synonym")
	}
}

func TestStaticGenerator_HyphenVariants(t *testing.T) {
	g := StaticGenerator{}

	syns, err := g.Synonyms(context.Background(), "Al-Andalus", "", "en", 5)
	require.NoError(t, err)
	assert.Contains(t, syns, "Al Andalus")
}

func TestStaticGenerator_Max(t *testing.T) {
	g := StaticGenerator{}

	syns, err := g.Synonyms(context.Background(), "some. name, here", "", "en", 1)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(syns), 1)
}

func TestLLMGenerator_ParsesArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"content":"Here you go: [\"Deutschland\", \"Federal Republic of Germany\", \"Germany\"]"}}]}`))
	}))
	defer srv.Close()

	g := NewLLMGenerator(LLMConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		RatePerSec: 1000,
	})

	syns, err := g.Synonyms(context.Background(), "Germany", "country", "en", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Deutschland", "Federal Republic of Germany"}, syns,
		"the original name is filtered out, order preserved")
}

func TestLLMGenerator_Throttled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewLLMGenerator(LLMConfig{BaseURL: srv.URL, RatePerSec: 1000})

	_, err := g.Synonyms(context.Background(), "Germany", "", "en", 5)
	require.Error(t, err)
	assert.True(t, errors.IsThrottled(err), "429 must surface as a throttling error")
}

func TestLLMGenerator_MalformedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"I cannot help with that."}}]}`))
	}))
	defer srv.Close()

	g := NewLLMGenerator(LLMConfig{BaseURL: srv.URL, RatePerSec: 1000})

	_, err := g.Synonyms(context.Background(), "Germany", "", "en", 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformed))
}

func TestExtractStringArray(t *testing.T) {
	out, err := extractStringArray("```json\n[\"a\", \"b\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)

	_, err = extractStringArray("no array here")
	assert.Error(t, err)
}
