package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "Meta-Llama-3.1-70B-Instruct",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "logprobs": null,
    "message": {
      "role": "assistant",
      "content": "",
      "refusal": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "current_datetime", "arguments": "{}"}
      }]
    }
  }]
}`

func TestNewCompatible_MissingKey(t *testing.T) {
	_, err := NewCompatible("", "http://localhost", "m", time.Second)
	assert.True(t, errs.Is(err, errs.KindConfiguration))
}

func TestProvider_Chat_ToolCalls(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolCallCompletion)
	}))
	defer srv.Close()

	p, err := NewCompatible("key", srv.URL, "Meta-Llama-3.1-70B-Instruct", 5*time.Second)
	require.NoError(t, err)

	tools := []llm.ToolDefinition{{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        "current_datetime",
			Description: "Provides the current date and time.",
			Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}}
	msgs := []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "What time is it?"},
	}

	resp, err := p.Chat(context.Background(), msgs, tools)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "call_1", resp.ToolCalls[0].ID)
	assert.Equal(t, "current_datetime", resp.ToolCalls[0].Function.Name)

	assert.Equal(t, "Meta-Llama-3.1-70B-Instruct", body["model"])
	assert.Len(t, body["tools"], 1)
}

func TestProvider_Chat_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	p, err := NewCompatible("key", srv.URL, "m", 5*time.Second)
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUpstreamAPI))
}

func TestProvider_Chat_UnknownRole(t *testing.T) {
	p, err := NewCompatible("key", "http://127.0.0.1:1", "m", time.Second)
	require.NoError(t, err)

	_, err = p.Chat(context.Background(), []llm.Message{{Role: "narrator", Content: "x"}}, nil)
	assert.True(t, errs.Is(err, errs.KindParse))
}
