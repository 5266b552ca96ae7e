package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/audio/reasoning", r.URL.Path)
		assert.Equal(t, "Bearer sn-key", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "Qwen2-Audio-7B-Instruct", gjson.GetBytes(body, "model").String())
		assert.Equal(t, 0.01, gjson.GetBytes(body, "temperature").Float())
		assert.EqualValues(t, 1024, gjson.GetBytes(body, "max_tokens").Int())
		assert.Equal(t, "data:audio/wav;base64,UklGRg==", gjson.GetBytes(body, "messages.1.content.0.audio_content.content").String())
		assert.Equal(t, "Just transcribe the audio", gjson.GetBytes(body, "messages.2.content").String())

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" When is the next E101 bus? "}}]}`))
	}))
	defer srv.Close()

	tr := NewTranscriber("sn-key", time.Second, WithTranscriberBaseURL(srv.URL))
	text, err := tr.Transcribe(context.Background(), []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "When is the next E101 bus?", text)
}

func TestTranscribe_MissingKey(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	_, err := NewTranscriber("", time.Second, WithTranscriberBaseURL(srv.URL)).Transcribe(context.Background(), []byte("RIFF"))
	assert.True(t, errs.Is(err, errs.KindConfiguration))
	assert.Zero(t, hits)
}

func TestTranscribe_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewTranscriber("k", time.Second, WithTranscriberBaseURL(srv.URL)).Transcribe(context.Background(), []byte("RIFF"))
	assert.True(t, errs.Is(err, errs.KindUpstreamAPI))
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/text-to-speech/Hamid", r.URL.Path)
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "The next E101 leaves at 06:02.", body["text"])
		assert.Equal(t, "eleven_turbo_v2", body["model_id"])

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3-audio"))
	}))
	defer srv.Close()

	s := NewSynthesizer("xi-key", time.Second, WithSynthesizerBaseURL(srv.URL+"/"))
	audio, err := s.Synthesize(context.Background(), "The next E101 leaves at 06:02.")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)
}

func TestSynthesize_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":{"status":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	_, err := NewSynthesizer("", time.Second, WithSynthesizerBaseURL(srv.URL)).Synthesize(context.Background(), "hi")
	assert.True(t, errs.Is(err, errs.KindConfiguration))

	_, err = NewSynthesizer("k", time.Second, WithSynthesizerBaseURL(srv.URL)).Synthesize(context.Background(), "  ")
	assert.True(t, errs.Is(err, errs.KindParse))

	_, err = NewSynthesizer("bad", time.Second, WithSynthesizerBaseURL(srv.URL), WithVoice("Rachel")).Synthesize(context.Background(), "hi")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUpstreamAPI))
	assert.True(t, strings.Contains(err.Error(), "invalid_api_key"))
}
