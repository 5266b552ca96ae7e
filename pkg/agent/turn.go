package agent

import (
	"context"
	"strings"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/geocode"
	"github.com/barekit/rihlat/pkg/llm"
	"github.com/barekit/rihlat/pkg/routing"
	"github.com/barekit/rihlat/pkg/tools"
)

type state int

const (
	stateAwaitingDecision state = iota
	stateInvokingTool
	stateComposingAnswer
	stateDone
)

func (s state) String() string {
	switch s {
	case stateAwaitingDecision:
		return "awaiting_decision"
	case stateInvokingTool:
		return "invoking_tool"
	case stateComposingAnswer:
		return "composing_answer"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// turn is the mutable state of a single Run.
type turn struct {
	agent    *Agent
	req      Request
	state    state
	steps    int
	defs     []llm.ToolDefinition
	messages []llm.Message
	pending  []llm.ToolCall
	draft    string
	outputs  []tools.Output
}

func (t *turn) run(ctx context.Context) (*Response, error) {
	a := t.agent
	for {
		switch t.state {
		case stateAwaitingDecision:
			if t.steps >= a.MaxSteps {
				return nil, errs.Newf(errs.KindStepLimit, "agent", "no answer after %d steps", t.steps)
			}
			t.steps++
			if a.Debug {
				a.Logger.Info("Agent Step", "step", t.steps)
			}

			// Think
			resp, err := a.LLM.Chat(ctx, t.messages, t.defs)
			if err != nil {
				return nil, errs.Wrap(errs.KindUpstreamAPI, "agent", err)
			}
			t.messages = append(t.messages, *resp)

			if len(resp.ToolCalls) > 0 {
				t.pending = resp.ToolCalls
				t.state = stateInvokingTool
			} else {
				t.draft = resp.Content
				t.state = stateComposingAnswer
			}

		case stateInvokingTool:
			// Act, then observe
			for _, tc := range t.pending {
				out := t.invoke(ctx, tc)
				t.outputs = append(t.outputs, out)
				t.messages = append(t.messages, llm.Message{
					Role:       llm.RoleTool,
					Content:    out.JSON(),
					ToolCallID: tc.ID,
				})
			}
			t.pending = nil
			t.state = stateAwaitingDecision

		case stateComposingAnswer:
			if strings.TrimSpace(t.draft) == "" {
				resp, err := a.LLM.Chat(ctx, t.messages, nil)
				if err != nil {
					return nil, errs.Wrap(errs.KindUpstreamAPI, "agent", err)
				}
				t.draft = resp.Content
			}
			t.state = stateDone

		case stateDone:
			return &Response{
				Answer: strings.TrimSpace(t.draft),
				Steps:  t.steps,
				Tools:  t.outputs,
			}, nil
		}
	}
}

// invoke decodes and runs one tool call. Failures are returned as structured outputs.
func (t *turn) invoke(ctx context.Context, tc llm.ToolCall) tools.Output {
	a := t.agent
	if a.Debug {
		a.Logger.Info("Agent Tool Call", "tool", tc.Function.Name, "args", tc.Function.Arguments)
	}

	inv, err := tools.Decode(tc)
	if err != nil {
		return t.logged(tools.Failure(tc.Function.Name, err))
	}

	switch v := inv.(type) {
	case tools.QueryTransitData:
		if a.Transit == nil {
			return t.logged(notConfigured(v))
		}
		res := a.Transit.Ask(ctx, v.Question, t.req.Limit)
		return t.logged(tools.Output{Tool: v.ToolName(), Result: res, Error: res.Error})

	case tools.Geocode:
		if a.Geocoder == nil {
			return t.logged(notConfigured(v))
		}
		locs, err := a.Geocoder.Search(ctx, geocode.Params{
			Query:      v.Query,
			Limit:      v.Limit,
			Language:   v.Language,
			CountrySet: v.CountrySet,
			Lat:        v.Lat,
			Lon:        v.Lon,
			Radius:     v.Radius,
		})
		if err != nil {
			return t.logged(tools.Failure(v.ToolName(), err))
		}
		return t.logged(tools.Output{Tool: v.ToolName(), Result: locs})

	case tools.Route:
		if a.Router == nil {
			return t.logged(notConfigured(v))
		}
		it, err := a.Router.Plan(ctx, routing.Params{
			Waypoints:    []string{v.Origin, v.Destination},
			Optimize:     v.Optimize,
			Avoid:        v.Avoid,
			DistanceUnit: v.DistanceUnit,
			DateTime:     v.DateTime,
			MaxSolutions: v.MaxSolutions,
		})
		if err != nil {
			return t.logged(tools.Failure(v.ToolName(), err))
		}
		return t.logged(tools.Output{Tool: v.ToolName(), Result: it})

	case tools.CurrentTime:
		return t.logged(tools.Output{Tool: v.ToolName(), Result: tools.Now(a.Clock(), a.Location)})

	default:
		return t.logged(tools.Failure(tc.Function.Name, errs.Newf(errs.KindParse, "agent", "unhandled tool %T", v)))
	}
}

func (t *turn) logged(out tools.Output) tools.Output {
	a := t.agent
	if !a.Debug {
		return out
	}
	if out.Error != nil {
		a.Logger.Error("Tool execution failed", "tool", out.Tool, "error", out.Error)
	} else {
		a.Logger.Info("Tool execution successful", "tool", out.Tool)
	}
	return out
}

func notConfigured(inv tools.Invocation) tools.Output {
	return tools.Output{
		Tool:  inv.ToolName(),
		Error: errs.Newf(errs.KindConfiguration, "agent", "%s is not configured", inv.ToolName()),
	}
}
