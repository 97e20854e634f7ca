package units

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
	"github.com/ahrav/go-tablefit/internal/testutils"
)

type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func newClassifyUnit(t *testing.T, cfg ClassifyCuisineConfig, llm ports.LLMClient, cache ports.CacheStore) *ClassifyCuisineUnit {
	t.Helper()
	u, err := NewClassifyCuisineUnit("classify", cfg, llm, cache, domain.DefaultVocabulary())
	require.NoError(t, err)
	return u
}

func classifyState(candidates ...domain.RestaurantCandidate) domain.State {
	return domain.With(domain.NewState(), domain.KeyCandidates, candidates)
}

// TestNewClassifyCuisineUnit verifies constructor validation.
func TestNewClassifyCuisineUnit(t *testing.T) {
	llm := testutils.NewMockLLMClient("mock")
	vocab := domain.DefaultVocabulary()

	_, err := NewClassifyCuisineUnit("", DefaultClassifyCuisineConfig(), llm, nil, vocab)
	assert.ErrorIs(t, err, ErrEmptyUnitName)

	_, err = NewClassifyCuisineUnit("c", DefaultClassifyCuisineConfig(), nil, nil, vocab)
	assert.ErrorIs(t, err, ErrMissingLLMClient)

	_, err = NewClassifyCuisineUnit("c", DefaultClassifyCuisineConfig(), llm, nil, nil)
	assert.ErrorIs(t, err, ErrMissingVocabulary)

	bad := DefaultClassifyCuisineConfig()
	bad.PromptTemplate = "{{.Name"
	_, err = NewClassifyCuisineUnit("c", bad, llm, nil, vocab)
	assert.ErrorContains(t, err, "invalid prompt template")

	bad = DefaultClassifyCuisineConfig()
	bad.MaxConcurrency = 0
	_, err = NewClassifyCuisineUnit("c", bad, llm, nil, vocab)
	assert.ErrorContains(t, err, "configuration validation failed")

	_, err = NewClassifyCuisineFromConfig("c", map[string]any{"max_concurrency": 2}, Dependencies{LLM: llm, Vocabulary: vocab})
	assert.NoError(t, err)
}

// TestClassifyCuisineUnit_Execute verifies enrichment, filtering of unknown
// labels and skipping of well described candidates.
func TestClassifyCuisineUnit_Execute(t *testing.T) {
	llm := testutils.NewMockLLMClient("mock").
		AddResponse(testutils.MockResponse{
			Pattern:  "Restaurant: Nonna",
			Response: "Sure!\n```json\n{\"cuisines\": [\"Italian\", \"pizza_restaurant\", \"Klingon\"], \"dietary\": [\"vegetarian\", \"Paleo\"]}\n```",
		})
	u := newClassifyUnit(t, DefaultClassifyCuisineConfig(), llm, nil)

	described := domain.RestaurantCandidate{
		PlaceID:        "p2",
		Name:           "Thai Basil",
		Cuisines:       []string{"thai_restaurant"},
		Accommodations: []string{"Vegan"},
	}
	state := classifyState(
		domain.RestaurantCandidate{PlaceID: "p1", Name: "Nonna", Cuisines: []string{"restaurant"}},
		described,
	)

	out, err := u.Execute(context.Background(), state)
	require.NoError(t, err)

	got, _ := domain.Get(out, domain.KeyCandidates)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"restaurant", "italian_restaurant", "pizza_restaurant"}, got[0].Cuisines)
	assert.Equal(t, []string{"Vegetarian"}, got[0].Accommodations)
	assert.Equal(t, described, got[1], "Described candidates are skipped.")
	assert.Equal(t, 1, llm.CallCount())

	prompt := llm.Prompts()[0]
	assert.Contains(t, prompt, "Italian")
	assert.Contains(t, prompt, "Gluten-Free")
}

// TestClassifyCuisineUnit_Cache verifies cached classifications skip the
// LLM.
func TestClassifyCuisineUnit_Cache(t *testing.T) {
	llm := testutils.NewMockLLMClient("mock").
		AddResponse(testutils.MockResponse{Pattern: "Restaurant:", Response: `{"cuisines": ["Korean"], "dietary": []}`})
	cache := newMemoryCache()
	u := newClassifyUnit(t, DefaultClassifyCuisineConfig(), llm, cache)

	state := classifyState(domain.RestaurantCandidate{PlaceID: "k1", Name: "Seoul"})
	for range 3 {
		out, err := u.Execute(context.Background(), state)
		require.NoError(t, err)
		got, _ := domain.Get(out, domain.KeyCandidates)
		assert.Equal(t, []string{"korean_restaurant"}, got[0].Cuisines)
	}

	assert.Equal(t, 1, llm.CallCount())
	_, ok, _ := cache.Get(context.Background(), "tablefit:classification:k1")
	assert.True(t, ok)
}

// TestClassifyCuisineUnit_Failures covers lenient and strict failure modes.
func TestClassifyCuisineUnit_Failures(t *testing.T) {
	tests := []struct {
		name        string
		response    testutils.MockResponse
		failOnError bool
		wantErr     bool
	}{
		{name: "llm error lenient", response: testutils.MockResponse{Pattern: "Restaurant:", Err: errors.New("down")}},
		{name: "llm error strict", response: testutils.MockResponse{Pattern: "Restaurant:", Err: errors.New("down")}, failOnError: true, wantErr: true},
		{name: "prose response lenient", response: testutils.MockResponse{Pattern: "Restaurant:", Response: "I am not sure."}},
		{name: "prose response strict", response: testutils.MockResponse{Pattern: "Restaurant:", Response: "I am not sure."}, failOnError: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultClassifyCuisineConfig()
			cfg.FailOnError = tt.failOnError
			u := newClassifyUnit(t, cfg, testutils.NewMockLLMClient("mock").AddResponse(tt.response), nil)

			original := domain.RestaurantCandidate{PlaceID: "x", Name: "Mystery", Cuisines: []string{"restaurant"}}
			out, err := u.Execute(context.Background(), classifyState(original))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			got, _ := domain.Get(out, domain.KeyCandidates)
			assert.Equal(t, original, got[0], "A failed classification leaves the candidate unchanged.")
		})
	}
}

// TestClassifyCuisineUnit_ParseClassification covers response extraction.
func TestClassifyCuisineUnit_ParseClassification(t *testing.T) {
	u := newClassifyUnit(t, DefaultClassifyCuisineConfig(), testutils.NewMockLLMClient("mock"), nil)

	tests := []struct {
		name     string
		response string
		want     Classification
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"cuisines": ["Sushi", "Japanese"], "dietary": ["Gluten-Free"]}`,
			want:     Classification{Cuisines: []string{"sushi_restaurant", "japanese_restaurant"}, Dietary: []string{"Gluten-Free"}},
		},
		{
			name:     "object inside prose with braces in strings",
			response: `Here: {"cuisines": ["Thai"], "dietary": [], "note": "curly } brace"} done`,
			want:     Classification{Cuisines: []string{"thai_restaurant"}, Dietary: []string{}},
		},
		{
			name:     "duplicates collapse",
			response: `{"cuisines": ["Thai", "thai", "thai_restaurant"]}`,
			want:     Classification{Cuisines: []string{"thai_restaurant"}, Dietary: []string{}},
		},
		{name: "no object", response: "nothing here", wantErr: true},
		{name: "malformed json", response: `{"cuisines": [}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := u.parseClassification(tt.response)
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestClassifyCuisineUnit_OnlyMissingDisabled verifies every candidate is
// classified when OnlyMissing is off.
func TestClassifyCuisineUnit_OnlyMissingDisabled(t *testing.T) {
	cfg := DefaultClassifyCuisineConfig()
	cfg.OnlyMissing = false
	llm := testutils.NewMockLLMClient("mock")
	u := newClassifyUnit(t, cfg, llm, nil)

	state := classifyState(
		domain.RestaurantCandidate{PlaceID: "a", Cuisines: []string{"thai_restaurant"}, Accommodations: []string{"Vegan"}},
		domain.RestaurantCandidate{PlaceID: "b", Cuisines: []string{"greek_restaurant"}, Accommodations: []string{"Halal"}},
	)
	_, err := u.Execute(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, 2, llm.CallCount())
}
