package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/llm"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Provider talks to any OpenAI-compatible chat completions endpoint.
type Provider struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func New(opts ...option.RequestOption) *Provider {
	client := openai.NewClient(opts...)
	return &Provider{
		client: &client,
		model:  openai.ChatModelGPT4o, // Default to GPT-4o
	}
}

// NewCompatible builds a provider for an OpenAI-compatible service such as SambaNova.
// An empty apiKey is a configuration error, reported before any request is made.
func NewCompatible(apiKey, baseURL, model string, timeout time.Duration) (*Provider, error) {
	if apiKey == "" {
		return nil, errs.New(errs.KindConfiguration, "llm", "LLM API key is missing")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	p := New(opts...)
	if model != "" {
		p.SetModel(model)
	}
	p.timeout = timeout
	return p, nil
}

// SetModel sets the model to use.
func (p *Provider) SetModel(model string) {
	p.model = model
}

func (p *Provider) Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Message, error) {
	openaiMessages, err := p.buildMessages(messages)
	if err != nil {
		return nil, errs.Wrap(errs.KindParse, "llm", err)
	}

	params := openai.ChatCompletionNewParams{
		Messages: openaiMessages,
		Model:    p.model,
	}

	if len(tools) > 0 {
		openaiTools := make([]openai.ChatCompletionToolParam, len(tools))
		for i, t := range tools {
			openaiTools[i] = openai.ChatCompletionToolParam{
				Function: shared.FunctionDefinitionParam{
					Name:        t.Function.Name,
					Description: openai.String(t.Function.Description),
					Parameters:  shared.FunctionParameters(t.Function.Parameters),
				},
			}
		}
		params.Tools = openaiTools
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}
	if len(completion.Choices) == 0 {
		return nil, errs.New(errs.KindUpstreamAPI, "llm", "completion has no choices")
	}

	choice := completion.Choices[0]
	responseMsg := &llm.Message{
		Role:    llm.RoleAssistant,
		Content: choice.Message.Content,
	}

	if len(choice.Message.ToolCalls) > 0 {
		responseMsg.ToolCalls = make([]llm.ToolCall, len(choice.Message.ToolCalls))
		for i, tc := range choice.Message.ToolCalls {
			responseMsg.ToolCalls[i] = llm.ToolCall{
				ID:   tc.ID,
				Type: string(tc.Type),
				Function: llm.Function{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}

	return responseMsg, nil
}

func (p *Provider) buildMessages(messages []llm.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	openaiMessages := make([]openai.ChatCompletionMessageParamUnion, len(messages))
	for i, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			openaiMessages[i] = openai.SystemMessage(msg.Content)
		case llm.RoleUser:
			openaiMessages[i] = openai.UserMessage(msg.Content)
		case llm.RoleAssistant:
			assistantMsg := openai.AssistantMessage(msg.Content)
			if len(msg.ToolCalls) > 0 {
				toolCalls := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
				for j, tc := range msg.ToolCalls {
					toolCalls[j] = openai.ChatCompletionMessageToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: tc.Function.Arguments,
						},
					}
				}
				if assistantMsg.OfAssistant != nil {
					assistantMsg.OfAssistant.ToolCalls = toolCalls
				}
			}
			openaiMessages[i] = assistantMsg
		case llm.RoleTool:
			openaiMessages[i] = openai.ToolMessage(msg.Content, msg.ToolCallID)
		default:
			return nil, fmt.Errorf("unknown role: %s", msg.Role)
		}
	}
	return openaiMessages, nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		e := errs.Upstream("llm", apiErr.StatusCode, err.Error())
		e.Err = err
		return e
	}
	return errs.Wrap(errs.KindUpstreamAPI, "llm", err)
}
