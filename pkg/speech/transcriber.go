// Package speech converts between voice and text: transcription of recorded questions and
// synthesis of spoken answers.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/barekit/rihlat/internal/apiclient"
	"github.com/barekit/rihlat/pkg/errs"
	"github.com/tidwall/gjson"
)

const (
	DefaultSTTBaseURL = "https://api.sambanova.ai/v1"
	DefaultSTTModel   = "Qwen2-Audio-7B-Instruct"

	transcribeInstruction = "you are a helpful assistant whose sole purpose is to transcribe audio into text. do not try to answer any of the questions"
)

// Transcriber turns WAV audio into text with an audio-reasoning chat endpoint.
type Transcriber struct {
	base  apiclient.Base
	model string
}

// TranscriberOption configures a Transcriber.
type TranscriberOption func(*Transcriber)

// WithTranscriberBaseURL points the Transcriber at another host.
func WithTranscriberBaseURL(u string) TranscriberOption {
	return func(t *Transcriber) {
		t.base.BaseURL = strings.TrimSuffix(u, "/")
	}
}

// WithTranscriberModel overrides the audio model.
func WithTranscriberModel(m string) TranscriberOption {
	return func(t *Transcriber) {
		if m != "" {
			t.model = m
		}
	}
}

// WithTranscriberLogger sets the logger.
func WithTranscriberLogger(l *slog.Logger) TranscriberOption {
	return func(t *Transcriber) {
		t.base.Logger = l.With("component", "speech.stt")
	}
}

// NewTranscriber creates a Transcriber. A missing apiKey is reported by Transcribe.
func NewTranscriber(apiKey string, timeout time.Duration, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		base:  apiclient.NewBase("speech.stt", apiKey, DefaultSTTBaseURL, timeout),
		model: DefaultSTTModel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type audioContent struct {
	Type         string `json:"type"`
	AudioContent struct {
		Content string `json:"content"`
	} `json:"audio_content"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type reasoningRequest struct {
	Messages    []chatMessage `json:"messages"`
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

// Transcribe returns the text spoken in wav.
func (t *Transcriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if err := t.base.RequireKey("STT_API_KEY or SAMBANOVA_API_KEY"); err != nil {
		return "", err
	}
	if len(wav) == 0 {
		return "", errs.New(errs.KindParse, "speech.stt", "audio is empty")
	}

	audio := audioContent{Type: "audio_content"}
	audio.AudioContent.Content = "data:audio/wav;base64," + base64.StdEncoding.EncodeToString(wav)

	payload := reasoningRequest{
		Messages: []chatMessage{
			{Role: "assistant", Content: transcribeInstruction},
			{Role: "user", Content: []audioContent{audio}},
			{Role: "user", Content: "Just transcribe the audio"},
		},
		Model:       t.model,
		MaxTokens:   1024,
		Temperature: 0.01,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", errs.Wrap(errs.KindParse, "speech.stt", fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base.URL("/audio/reasoning", nil), bytes.NewReader(body))
	if err != nil {
		return "", errs.Wrap(errs.KindConfiguration, "speech.stt", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.base.APIKey)

	resp, err := t.base.Do(req)
	if err != nil {
		return "", err
	}

	content := gjson.GetBytes(resp, "choices.0.message.content")
	if !content.Exists() {
		return "", errs.New(errs.KindUpstreamAPI, "speech.stt", "malformed response: no choices")
	}
	text := strings.TrimSpace(content.String())
	t.base.Logger.Debug("transcribed audio", "bytes", len(wav), "chars", len(text))
	return text, nil
}
