package llm

import (
	"context"
	"fmt"
	"strings"
)

// Role represents the role of the message sender (system, user, assistant, tool).
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message represents a single message in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	// ToolCalls is a list of tool calls made by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID is the ID of the tool call this message is a response to.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a request to call a tool.
type ToolCall struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function represents the function details in a tool call.
type Function struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Provider defines the interface for an LLM provider.
type Provider interface {
	// Chat sends a list of messages to the LLM and returns the response.
	// With a non-empty tools list the model may answer with tool calls instead of text.
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error)
}

// ToolDefinition represents the schema of a tool that can be passed to the LLM.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes the function signature for the LLM.
type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters"`
}

// Complete sends a system + human prompt without tools and returns the trimmed text reply.
func Complete(ctx context.Context, p Provider, system, human string) (string, error) {
	msgs := []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: human},
	}
	resp, err := p.Chat(ctx, msgs, nil)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("empty response from model")
	}
	return strings.TrimSpace(resp.Content), nil
}
