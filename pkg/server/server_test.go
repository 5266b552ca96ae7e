package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/barekit/rihlat/pkg/agent"
	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/memory"
	"github.com/barekit/rihlat/pkg/memory/inmemory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeDispatcher struct {
	got []agent.Request
	err error
}

func (f *fakeDispatcher) Run(ctx context.Context, req agent.Request) (*agent.Response, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Response{Answer: "Take the Metro Red Line.", Steps: 2}, nil
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	if len(wav) == 0 {
		return "", errs.New(errs.KindParse, "speech", "empty audio")
	}
	return "how do I get to dubai mall", nil
}

type fakeSynthesizer struct{}

func (fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return []byte("ID3" + text), nil
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestAsk(t *testing.T) {
	d := &fakeDispatcher{}
	h := New(d).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{"text":"Red line to Dubai Mall?","limit":3}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, h, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp agent.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Take the Metro Red Line.", resp.Answer)
	assert.Equal(t, []agent.Request{{Text: "Red line to Dubai Mall?", Limit: 3}}, d.got)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestAsk_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing text", `{}`},
		{"limit too large", `{"text":"hi","limit":1000}`},
		{"malformed", `{"text":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := do(t, New(d).Handler(), req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, errs.KindParse, decodeError(t, w).Kind)
			assert.Empty(t, d.got)
		})
	}
}

func TestAsk_ErrorKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{errs.New(errs.KindConfiguration, "llm", "LLM API key is missing"), http.StatusServiceUnavailable},
		{errs.Upstream("llm", 500, "boom"), http.StatusBadGateway},
		{errs.New(errs.KindTimeout, "llm", "deadline exceeded"), http.StatusGatewayTimeout},
		{errs.New(errs.KindStepLimit, "agent", "no answer after 10 steps"), http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(string(errs.KindOf(tt.err)), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{"text":"hi"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Request-ID", "5f0c2a52-5a0e-4bd3-9b8e-6b1f0d7a2c11")
			w := do(t, New(&fakeDispatcher{err: tt.err}).Handler(), req)

			assert.Equal(t, tt.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, errs.KindOf(tt.err), body.Kind)
			assert.Equal(t, "5f0c2a52-5a0e-4bd3-9b8e-6b1f0d7a2c11", body.RequestID)
		})
	}
}

func voiceRequest(t *testing.T, audio []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("audio", "question.wav")
	require.NoError(t, err)
	_, err = fw.Write(audio)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/voice", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestVoice(t *testing.T) {
	d := &fakeDispatcher{}
	h := New(d, WithTranscriber(fakeTranscriber{})).Handler()

	w := do(t, h, voiceRequest(t, []byte("RIFF....WAVE")))

	require.Equal(t, http.StatusOK, w.Code)
	var resp VoiceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "how do I get to dubai mall", resp.Transcript)
	assert.Equal(t, "Take the Metro Red Line.", resp.Answer)
	assert.Equal(t, "how do I get to dubai mall", d.got[0].Text)
}

func TestVoice_NotConfigured(t *testing.T) {
	w := do(t, New(&fakeDispatcher{}).Handler(), voiceRequest(t, []byte("RIFF")))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, errs.KindConfiguration, decodeError(t, w).Kind)
}

func TestVoice_MissingFile(t *testing.T) {
	h := New(&fakeDispatcher{}, WithTranscriber(fakeTranscriber{})).Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/voice", bytes.NewBufferString(""))
	w := do(t, h, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpeech(t *testing.T) {
	h := New(&fakeDispatcher{}, WithSynthesizer(fakeSynthesizer{})).Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/speech", bytes.NewBufferString(`{"text":"Marhaba"}`))
	req.Header.Set("Content-Type", "application/json")
	w := do(t, h, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "audio/mpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "ID3Marhaba", w.Body.String())
}

func TestHistory(t *testing.T) {
	mem := inmemory.New()
	for _, c := range []string{"one", "two", "three"} {
		require.NoError(t, mem.Append(context.Background(), memory.NewTurn(memory.RoleUser, c)))
	}
	h := New(&fakeDispatcher{}, WithHistory(mem)).Handler()

	w := do(t, h, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Turns []memory.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Turns, 2)
	assert.Equal(t, "two", body.Turns[0].Content)
	assert.Equal(t, "three", body.Turns[1].Content)

	w = do(t, h, httptest.NewRequest(http.MethodGet, "/api/history?limit=0x", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthzAndCORS(t *testing.T) {
	h := New(&fakeDispatcher{}).Handler()
	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := do(t, h, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
