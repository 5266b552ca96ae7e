package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/barekit/rihlat/internal/apiclient"
	"github.com/barekit/rihlat/pkg/errs"
)

const (
	DefaultTTSBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoice      = "Hamid"
	DefaultTTSModel   = "eleven_turbo_v2"
)

// Synthesizer speaks answers with ElevenLabs text-to-speech.
type Synthesizer struct {
	base  apiclient.Base
	voice string
	model string
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithSynthesizerBaseURL points the Synthesizer at another host.
func WithSynthesizerBaseURL(u string) SynthesizerOption {
	return func(s *Synthesizer) {
		s.base.BaseURL = strings.TrimSuffix(u, "/")
	}
}

// WithVoice sets the voice.
func WithVoice(v string) SynthesizerOption {
	return func(s *Synthesizer) {
		if v != "" {
			s.voice = v
		}
	}
}

// WithSynthesizerModel sets the TTS model.
func WithSynthesizerModel(m string) SynthesizerOption {
	return func(s *Synthesizer) {
		if m != "" {
			s.model = m
		}
	}
}

// WithSynthesizerLogger sets the logger.
func WithSynthesizerLogger(l *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.base.Logger = l.With("component", "speech.tts")
	}
}

// NewSynthesizer creates a Synthesizer. A missing apiKey is reported by Synthesize.
func NewSynthesizer(apiKey string, timeout time.Duration, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		base:  apiclient.NewBase("speech.tts", apiKey, DefaultTTSBaseURL, timeout),
		voice: DefaultVoice,
		model: DefaultTTSModel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize returns MP3 audio of text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := s.base.RequireKey("ELEVENLABS_KEY"); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errs.New(errs.KindParse, "speech.tts", "text is empty")
	}

	body, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": s.model,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, "speech.tts", fmt.Errorf("marshal payload: %w", err))
	}

	u := s.base.URL("/text-to-speech/"+url.PathEscape(s.voice), nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, "speech.tts", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.base.APIKey)

	start := time.Now()
	audio, err := s.base.Do(req)
	if err != nil {
		return nil, err
	}

	s.base.Logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", time.Since(start).Milliseconds(),
		"model", s.model,
	)
	return audio, nil
}
