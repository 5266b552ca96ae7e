package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/geocode"
	"github.com/barekit/rihlat/pkg/knowledge"
	"github.com/barekit/rihlat/pkg/knowledge/inmemory"
	"github.com/barekit/rihlat/pkg/llm"
	"github.com/barekit/rihlat/pkg/llm/llmtest"
	memstore "github.com/barekit/rihlat/pkg/memory/inmemory"
	"github.com/barekit/rihlat/pkg/routing"
	"github.com/barekit/rihlat/pkg/sqlagent"
	"github.com/barekit/rihlat/pkg/tools"
)

type fakeTransit struct {
	questions []string
	limits    []int
	result    sqlagent.Result
}

func (f *fakeTransit) Ask(ctx context.Context, question string, limit int) sqlagent.Result {
	f.questions = append(f.questions, question)
	f.limits = append(f.limits, limit)
	return f.result
}

type fakeGeocoder struct {
	err error
}

func (f fakeGeocoder) Search(ctx context.Context, p geocode.Params) ([]geocode.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []geocode.Location{{Address: p.Query, Lat: 25.19, Lon: 55.27, Type: "POI"}}, nil
}

type fakeRouter struct {
	got routing.Params
}

func (f *fakeRouter) Plan(ctx context.Context, p routing.Params) (routing.Itinerary, error) {
	f.got = p
	return routing.Itinerary{Instructions: []string{"Take Metro Red Line"}, TravelDuration: 1200}, nil
}

type staticEmbedder struct{}

func (staticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestAgent_WhatTimeIsIt(t *testing.T) {
	mock := &llmtest.Provider{Responses: []llm.Message{
		llmtest.ToolCall("call_1", tools.NameCurrentTime, `{}`),
		llmtest.Text("It is 9:30 in the morning."),
	}}
	dubai, _ := time.LoadLocation("Asia/Dubai")
	clock := func() time.Time { return time.Date(2025, 3, 1, 5, 30, 0, 0, time.UTC) }

	a := New(mock, WithLocation(dubai), WithClock(clock))
	resp, err := a.Run(context.Background(), Request{Text: "What time is it?"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if resp.Answer != "It is 9:30 in the morning." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if resp.Steps != 2 || resp.Steps > a.MaxSteps {
		t.Errorf("expected 2 steps, got %d", resp.Steps)
	}

	calls := mock.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(calls))
	}
	toolMsg := calls[1].Messages[len(calls[1].Messages)-1]
	if toolMsg.Role != llm.RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Fatalf("expected tool message for call_1, got %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "The current date and time is: 2025-03-01 09:30:00") {
		t.Errorf("unexpected tool output %s", toolMsg.Content)
	}
	if len(calls[0].Tools) != 4 {
		t.Errorf("expected 4 tool definitions, got %d", len(calls[0].Tools))
	}
}

func TestAgent_QueryTransitData(t *testing.T) {
	transit := &fakeTransit{result: sqlagent.Result{
		Database: "merged_gtfs",
		Query:    "SELECT route_long_name FROM routes WHERE route_short_name = 'E101'",
		Columns:  []string{"route_long_name"},
		Rows:     [][]any{{"Ibn Battuta - Abu Dhabi"}},
	}}
	mock := &llmtest.Provider{Responses: []llm.Message{
		llmtest.ToolCall("call_1", tools.NameQueryTransitData, `{"question":"Where does E101 go?"}`),
		llmtest.Text("E101 runs between Ibn Battuta and Abu Dhabi."),
	}}

	a := New(mock, WithTransit(transit))
	resp, err := a.Run(context.Background(), Request{Text: "Where does the E101 go?", Limit: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(transit.questions) != 1 || transit.questions[0] != "Where does E101 go?" || transit.limits[0] != 3 {
		t.Fatalf("unexpected transit calls %v %v", transit.questions, transit.limits)
	}
	if len(resp.Tools) != 1 || resp.Tools[0].Error != nil {
		t.Fatalf("unexpected tool outputs %+v", resp.Tools)
	}

	var payload struct {
		Tool   string `json:"tool"`
		Result struct {
			Rows [][]any `json:"rows"`
		} `json:"result"`
	}
	msg := mock.Calls()[1].Messages[3]
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		t.Fatalf("tool output is not JSON: %v", err)
	}
	if payload.Tool != tools.NameQueryTransitData || payload.Result.Rows[0][0] != "Ibn Battuta - Abu Dhabi" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestAgent_ToolErrorIsFoldedBack(t *testing.T) {
	mock := &llmtest.Provider{Responses: []llm.Message{
		llmtest.ToolCall("call_1", tools.NameGeocode, `{"query":"Dubai Mall"}`),
		llmtest.Text("Sorry, the map service is not set up."),
	}}
	geo := fakeGeocoder{err: errs.New(errs.KindConfiguration, "geocode", "API key is missing: set TOMTOM_API_KEY")}

	a := New(mock, WithGeocoder(geo))
	resp, err := a.Run(context.Background(), Request{Text: "Where is Dubai Mall?"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Answer != "Sorry, the map service is not set up." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}

	toolMsg := mock.Calls()[1].Messages[3]
	if !strings.Contains(toolMsg.Content, `"kind":"configuration"`) {
		t.Errorf("expected structured configuration error, got %s", toolMsg.Content)
	}
}

func TestAgent_InvalidArgumentsAndUnknownTool(t *testing.T) {
	mock := &llmtest.Provider{Responses: []llm.Message{
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "a", Type: "function", Function: llm.Function{Name: tools.NameRoute, Arguments: `{"origin":"Dubai Mall"}`}},
			{ID: "b", Type: "function", Function: llm.Function{Name: "python_repl", Arguments: `{"code":"1+1"}`}},
		}},
		llmtest.Text("I need a destination."),
	}}

	a := New(mock, WithRouter(&fakeRouter{}))
	resp, err := a.Run(context.Background(), Request{Text: "Take me from Dubai Mall"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(resp.Tools) != 2 {
		t.Fatalf("expected 2 tool outputs, got %d", len(resp.Tools))
	}
	for _, out := range resp.Tools {
		if out.Error == nil || out.Error.Kind != errs.KindParse {
			t.Errorf("expected parse error, got %+v", out)
		}
	}
}

func TestAgent_Route(t *testing.T) {
	router := &fakeRouter{}
	mock := &llmtest.Provider{Responses: []llm.Message{
		llmtest.ToolCall("call_1", tools.NameRoute, `{"origin":"Dubai Mall","destination":"Palm Jumeirah","optimize":"time"}`),
		llmtest.Text("Take the Metro Red Line; about 20 minutes."),
	}}

	a := New(mock, WithRouter(router))
	if _, err := a.Run(context.Background(), Request{Text: "Dubai Mall to Palm Jumeirah?"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(router.got.Waypoints) != 2 || router.got.Waypoints[1] != "Palm Jumeirah" || router.got.Optimize != "time" {
		t.Errorf("unexpected routing params %+v", router.got)
	}
}

func TestAgent_NotConfigured(t *testing.T) {
	mock := &llmtest.Provider{Responses: []llm.Message{
		llmtest.ToolCall("call_1", tools.NameQueryTransitData, `{"question":"q"}`),
		llmtest.Text("done"),
	}}

	resp, err := New(mock).Run(context.Background(), Request{Text: "q"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Tools[0].Error == nil || resp.Tools[0].Error.Kind != errs.KindConfiguration {
		t.Errorf("expected configuration error, got %+v", resp.Tools[0])
	}
}

func TestAgent_StepLimit(t *testing.T) {
	var loop []llm.Message
	for i := 0; i < 5; i++ {
		loop = append(loop, llmtest.ToolCall("call", tools.NameCurrentTime, `{}`))
	}
	mock := &llmtest.Provider{Responses: loop}

	_, err := New(mock, WithMaxSteps(3)).Run(context.Background(), Request{Text: "loop"})
	if !errs.Is(err, errs.KindStepLimit) {
		t.Fatalf("expected step limit error, got %v", err)
	}
	if n := len(mock.Calls()); n != 3 {
		t.Errorf("expected 3 model calls, got %d", n)
	}
}

func TestAgent_EmptyContentComposesAnswer(t *testing.T) {
	mock := &llmtest.Provider{Responses: []llm.Message{
		llmtest.ToolCall("call_1", tools.NameCurrentTime, `{}`),
		llmtest.Text(""),
		llmtest.Text("It is morning."),
	}}

	resp, err := New(mock).Run(context.Background(), Request{Text: "What time is it?"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if resp.Answer != "It is morning." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	calls := mock.Calls()
	if len(calls) != 3 || calls[2].Tools != nil {
		t.Errorf("expected a final call without tools, got %d calls", len(calls))
	}
}

func TestAgent_LLMFailureEndsTurn(t *testing.T) {
	mock := &llmtest.Provider{Err: errors.New("connection reset")}
	history := memstore.New()

	_, err := New(mock, WithMemory(history)).Run(context.Background(), Request{Text: "hi"})
	if !errs.Is(err, errs.KindUpstreamAPI) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	turns, _ := history.Turns(context.Background())
	if len(turns) != 0 {
		t.Errorf("failed turns must not be recorded, got %d", len(turns))
	}
}

func TestAgent_EmptyRequest(t *testing.T) {
	_, err := New(&llmtest.Provider{}).Run(context.Background(), Request{Text: "  "})
	if !errs.Is(err, errs.KindParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestAgent_HistoryAndHints(t *testing.T) {
	ctx := context.Background()
	kb := knowledge.NewKnowledgeBase(staticEmbedder{}, inmemory.New())
	if err := kb.Ingest(ctx, []knowledge.Document{{ID: "r2", Content: "Route MGrn (route_short_name) is Metro Green Line (route_long_name)"}}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	history := memstore.New()
	mock := &llmtest.Provider{Responses: []llm.Message{llmtest.Text("The green line is MGrn.")}}

	a := New(mock, WithMemory(history), WithKnowledge(kb))
	if _, err := a.Run(ctx, Request{Text: "Which code is the green line?"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	user := mock.Calls()[0].Messages[1]
	if !strings.HasPrefix(user.Content, "Which code is the green line?\nRelevant Context:\n- Route MGrn") {
		t.Errorf("expected hints in user message, got %q", user.Content)
	}

	turns, _ := history.Turns(ctx)
	if len(turns) != 2 || turns[0].Content != "Which code is the green line?" || turns[1].Content != "The green line is MGrn." {
		t.Errorf("unexpected history %+v", turns)
	}
}

func TestAgent_RunAsync(t *testing.T) {
	mock := &llmtest.Provider{Responses: []llm.Message{llmtest.Text("Hello!")}}

	ch := New(mock).RunAsync(context.Background(), Request{Text: "hi"})
	out, ok := <-ch
	if !ok {
		t.Fatal("channel closed without an outcome")
	}
	if out.Err != nil || out.Response.Answer != "Hello!" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, ok := <-ch; ok {
		t.Error("expected exactly one outcome")
	}
}
