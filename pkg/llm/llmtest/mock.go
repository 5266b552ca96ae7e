// Package llmtest provides a scripted llm.Provider for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/barekit/rihlat/pkg/llm"
)

// Call records one Chat invocation.
type Call struct {
	Messages []llm.Message
	Tools    []llm.ToolDefinition
}

// Provider replays Responses in order. Once they run out it answers with Fallback.
type Provider struct {
	Responses []llm.Message
	Fallback  string
	Err       error

	mu    sync.Mutex
	calls []Call
}

// Chat implements llm.Provider.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgs := make([]llm.Message, len(messages))
	copy(msgs, messages)
	p.calls = append(p.calls, Call{Messages: msgs, Tools: tools})

	if p.Err != nil {
		return nil, p.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := len(p.calls) - 1
	if idx >= len(p.Responses) {
		fallback := p.Fallback
		if fallback == "" {
			fallback = "No more responses"
		}
		return &llm.Message{Role: llm.RoleAssistant, Content: fallback}, nil
	}
	resp := p.Responses[idx]
	if resp.Role == "" {
		resp.Role = llm.RoleAssistant
	}
	return &resp, nil
}

// Calls returns a copy of the recorded calls.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// Text is a shorthand for a plain assistant reply.
func Text(content string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: content}
}

// ToolCall is a shorthand for an assistant reply carrying a single tool call.
func ToolCall(id, name, args string) llm.Message {
	return llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:       id,
			Type:     "function",
			Function: llm.Function{Name: name, Arguments: args},
		}},
	}
}
