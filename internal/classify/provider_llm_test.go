package classify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retracehq/retrace/pkg/models"
)

func TestLLMProvider_IsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewLLMProvider(srv.URL)
	available, err := p.IsAvailable(context.Background(), RouterContext{})
	require.NoError(t, err)
	assert.True(t, available)
}

func TestLLMProvider_IsAvailable_Down(t *testing.T) {
	// A connection refusal is "unavailable", not an error.
	p := NewLLMProvider("http://127.0.0.1:1")
	available, err := p.IsAvailable(context.Background(), RouterContext{})
	require.NoError(t, err)
	assert.False(t, available)
}

func TestLLMProvider_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/classify", r.URL.Path)

		var req llmClassifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.Context)
		assert.Equal(t, "youtube:abc", req.Context.Key)

		_ = json.NewEncoder(w).Encode(models.ClassificationResult{
			Category:   "entertainment",
			Activity:   "watching video",
			Summary:    "Watching a video",
			Confidence: 0.8,
		})
	}))
	defer srv.Close()

	p := NewLLMProvider(srv.URL)
	result, err := p.Classify(context.Background(), Input{
		EventID: 1,
		Context: &models.ActivityContext{Key: "youtube:abc"},
	}, RouterContext{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "entertainment", result.Category)
	assert.Equal(t, 0.8, result.Confidence)
}

func TestLLMProvider_Classify_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewLLMProvider(srv.URL)
	_, err := p.Classify(context.Background(), Input{}, RouterContext{})
	assert.Error(t, err)
}
