package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/geocode"
	"github.com/barekit/rihlat/pkg/knowledge"
	"github.com/barekit/rihlat/pkg/llm"
	"github.com/barekit/rihlat/pkg/memory"
	"github.com/barekit/rihlat/pkg/routing"
	"github.com/barekit/rihlat/pkg/sqlagent"
	"github.com/barekit/rihlat/pkg/tools"
)

const (
	DefaultMaxSteps = 10
	DefaultLimit    = 5
	hintCount       = 3
)

// DefaultInstructions is the system prompt of every turn.
const DefaultInstructions = `You are Rihlat, a voice assistant for public transit riders in the UAE.
Answer questions about schedules, routes, stops, places and travel times.
Use gtfs_coordinator for anything stored in the transit timetable (routes, stops, trips, departures).
Use geocoding_tool to find where a place is, transit_routing_tool to plan a trip between two places,
and current_datetime whenever the answer depends on the current date or time.
If a tool reports an error, explain the problem to the rider in one short sentence.
Keep answers short and conversational; they are read aloud.`

// TransitQuerier answers questions from the GTFS databases.
type TransitQuerier interface {
	Ask(ctx context.Context, question string, limit int) sqlagent.Result
}

// Geocoder resolves place names.
type Geocoder interface {
	Search(ctx context.Context, p geocode.Params) ([]geocode.Location, error)
}

// Router plans transit itineraries.
type Router interface {
	Plan(ctx context.Context, p routing.Params) (routing.Itinerary, error)
}

// Request is one user utterance.
type Request struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
}

// Response is the outcome of a completed turn.
type Response struct {
	Answer string         `json:"answer"`
	Steps  int            `json:"steps"`
	Tools  []tools.Output `json:"tools,omitempty"`
}

// Outcome is delivered exactly once by RunAsync.
type Outcome struct {
	Response *Response
	Err      error
}

// Agent dispatches a user request to the model and the tools it selects.
type Agent struct {
	Name         string
	Instructions string
	LLM          llm.Provider
	Transit      TransitQuerier
	Geocoder     Geocoder
	Router       Router
	Memory       memory.Memory
	Knowledge    *knowledge.KnowledgeBase
	Location     *time.Location
	Clock        func() time.Time
	MaxSteps     int
	Debug        bool
	Logger       *slog.Logger
}

// Option is a function that configures an Agent.
type Option func(*Agent)

// New creates a new Agent.
func New(llmProvider llm.Provider, opts ...Option) *Agent {
	a := &Agent{
		Name:         "Rihlat",
		Instructions: DefaultInstructions,
		LLM:          llmProvider,
		Location:     time.Local,
		Clock:        time.Now,
		MaxSteps:     DefaultMaxSteps,
		Logger:       slog.Default(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WithName sets the agent's name.
func WithName(name string) Option {
	return func(a *Agent) {
		a.Name = name
	}
}

// WithInstructions sets the agent's system instructions.
func WithInstructions(instructions string) Option {
	return func(a *Agent) {
		a.Instructions = instructions
	}
}

// WithTransit sets the transit data tool.
func WithTransit(q TransitQuerier) Option {
	return func(a *Agent) {
		a.Transit = q
	}
}

// WithGeocoder sets the geocoding tool.
func WithGeocoder(g Geocoder) Option {
	return func(a *Agent) {
		a.Geocoder = g
	}
}

// WithRouter sets the transit routing tool.
func WithRouter(r Router) Option {
	return func(a *Agent) {
		a.Router = r
	}
}

// WithMemory sets the conversation history.
func WithMemory(mem memory.Memory) Option {
	return func(a *Agent) {
		a.Memory = mem
	}
}

// WithKnowledge sets the knowledge base used for route-name hints.
func WithKnowledge(kb *knowledge.KnowledgeBase) Option {
	return func(a *Agent) {
		a.Knowledge = kb
	}
}

// WithLocation sets the zone the current-time tool reports in.
func WithLocation(loc *time.Location) Option {
	return func(a *Agent) {
		if loc != nil {
			a.Location = loc
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		a.Clock = now
	}
}

// WithMaxSteps bounds the number of model decisions per turn.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.MaxSteps = n
		}
	}
}

// WithDebug enables debug logging.
func WithDebug(enable bool) Option {
	return func(a *Agent) {
		a.Debug = enable
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		a.Logger = l
	}
}

// RunAsync runs the turn on its own goroutine. The channel receives one Outcome and is closed.
func (a *Agent) RunAsync(ctx context.Context, req Request) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		resp, err := a.Run(ctx, req)
		out <- Outcome{Response: resp, Err: err}
	}()
	return out
}

// Run executes one turn: the model decides, tools run, and the model composes the answer.
func (a *Agent) Run(ctx context.Context, req Request) (*Response, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, errs.New(errs.KindParse, "agent", "request text is empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if a.Debug {
		a.Logger.Info("Agent Run started", "agent", a.Name, "input", req.Text)
	}

	t := &turn{
		agent: a,
		req:   req,
		state: stateAwaitingDecision,
		defs:  tools.Definitions(),
		messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.Instructions},
			{Role: llm.RoleUser, Content: req.Text + a.hints(ctx, req.Text)},
		},
	}

	resp, err := t.run(ctx)
	if err != nil {
		if a.Debug {
			a.Logger.Error("Agent Run failed", "state", t.state, "steps", t.steps, "error", err)
		}
		return nil, err
	}

	if a.Memory != nil {
		err := a.Memory.Append(ctx,
			memory.NewTurn(memory.RoleUser, req.Text),
			memory.NewTurn(memory.RoleAssistant, resp.Answer),
		)
		if err != nil {
			a.Logger.Warn("failed to save history", "error", err)
		}
	}

	if a.Debug {
		a.Logger.Info("Agent Run completed", "steps", resp.Steps, "response", resp.Answer)
	}
	return resp, nil
}

// hints returns route-name context for question, or "" when there is none.
// Retrieval failures only cost the hints, never the turn.
func (a *Agent) hints(ctx context.Context, question string) string {
	if a.Knowledge == nil {
		return ""
	}
	docs, err := a.Knowledge.Retrieve(ctx, question, hintCount)
	if err != nil {
		a.Logger.Warn("failed to retrieve route hints", "error", err)
		return ""
	}
	return knowledge.Context(docs)
}
