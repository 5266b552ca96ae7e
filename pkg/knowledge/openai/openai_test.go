package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromKey_Missing(t *testing.T) {
	_, err := NewFromKey("", "", time.Second)
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "text-embedding-3-small", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-3-small",
			"data": [
				{"object": "embedding", "index": 0, "embedding": [0.5, -0.25]},
				{"object": "embedding", "index": 1, "embedding": [1, 0]}
			],
			"usage": {"prompt_tokens": 4, "total_tokens": 4}
		}`))
	}))
	defer srv.Close()

	e, err := NewFromKey("sk-test", "", time.Second, option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"E101", "MGrn"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, -0.25}, {1, 0}}, vecs)
}

func TestEmbed_Upstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	e, err := NewFromKey("sk-bad", "", time.Second, option.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = e.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUpstreamAPI))
	assert.Equal(t, http.StatusUnauthorized, errs.As(err, "").StatusCode)
}
