// Package tools defines the closed set of capabilities the dispatcher can invoke.
//
// Each capability is a struct implementing Invocation. Decode turns a model tool call into one
// of them; the dispatcher then switches on the concrete type.
package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/llm"
)

// Tool names as advertised to the model.
const (
	NameQueryTransitData = "gtfs_coordinator"
	NameGeocode          = "geocoding_tool"
	NameRoute            = "transit_routing_tool"
	NameCurrentTime      = "current_datetime"
)

// Invocation is a decoded tool call. The set of implementations is closed.
type Invocation interface {
	ToolName() string
	isInvocation()
}

// QueryTransitData answers a question from the GTFS databases.
type QueryTransitData struct {
	Question string `json:"question" description:"The user's transit question, e.g. 'Which buses stop at Dubai Mall?'"`
}

// Geocode looks up coordinates for a place name.
type Geocode struct {
	Query      string   `json:"query" description:"Location to search for (e.g., 'Dubai Mall')"`
	Limit      int      `json:"limit,omitempty" description:"Maximum number of results to return"`
	Language   string   `json:"language,omitempty" description:"Language for the results, e.g. en-US"`
	CountrySet string   `json:"countrySet,omitempty" description:"Comma-separated list of country codes (e.g., 'AE,OM')"`
	Lat        *float64 `json:"lat,omitempty" description:"Latitude of the search area center"`
	Lon        *float64 `json:"lon,omitempty" description:"Longitude of the search area center"`
	Radius     int      `json:"radius,omitempty" description:"Radius around the lat/lon in meters"`
}

// Route plans a public transit trip between two places.
type Route struct {
	Origin       string `json:"origin" description:"The name of the origin location."`
	Destination  string `json:"destination" description:"The name of the destination location."`
	Optimize     string `json:"optimize,omitempty" description:"What to optimize for" enum:"time,timeWithTraffic,distance"`
	Avoid        string `json:"avoid,omitempty" description:"Road types to avoid, e.g. tolls"`
	DistanceUnit string `json:"distance_unit,omitempty" description:"Unit for distances" enum:"km,mi"`
	DateTime     string `json:"date_time,omitempty" description:"Departure time, e.g. '03/01/2025 09:00:00'"`
	MaxSolutions int    `json:"max_solutions,omitempty" description:"Maximum number of routes to return"`
}

// CurrentTime reports the current date and time.
type CurrentTime struct{}

func (QueryTransitData) ToolName() string { return NameQueryTransitData }
func (Geocode) ToolName() string          { return NameGeocode }
func (Route) ToolName() string            { return NameRoute }
func (CurrentTime) ToolName() string      { return NameCurrentTime }

func (QueryTransitData) isInvocation() {}
func (Geocode) isInvocation()          {}
func (Route) isInvocation()            {}
func (CurrentTime) isInvocation()      {}

type entry struct {
	name        string
	description string
	args        Invocation
	// ignoreArgs decodes any argument payload to the zero value.
	ignoreArgs bool
}

var catalog = []entry{
	{NameQueryTransitData, "Handles queries related to public transit data, such as schedules, routes, and stop information", QueryTransitData{}, false},
	{NameGeocode, "Fetches geocoding information (coordinates and addresses) for a place name", Geocode{}, false},
	{NameRoute, "Plans public transit routes between an origin and a destination with travel preferences", Route{}, false},
	{NameCurrentTime, "Provides the current date and time.", CurrentTime{}, true},
}

// Definitions returns the schema of every tool, in a fixed order.
func Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, len(catalog))
	for i, s := range catalog {
		defs[i] = definition(s.name, s.description, s.args)
	}
	return defs
}

// Names returns every tool name.
func Names() []string {
	out := make([]string, len(catalog))
	for i, s := range catalog {
		out[i] = s.name
	}
	return out
}

// Decode converts a model tool call into an Invocation.
// Unknown tools, unknown fields and missing required fields are parse errors.
// current_datetime accepts and ignores any arguments.
func Decode(tc llm.ToolCall) (Invocation, error) {
	var target reflect.Type
	for _, s := range catalog {
		if s.name == tc.Function.Name {
			if s.ignoreArgs {
				return s.args, nil
			}
			target = reflect.TypeOf(s.args)
			break
		}
	}
	if target == nil {
		return nil, errs.Newf(errs.KindParse, "tools", "unknown tool %q", tc.Function.Name)
	}

	args := strings.TrimSpace(tc.Function.Arguments)
	if args == "" || args == "null" {
		args = "{}"
	}

	ptr := reflect.New(target)
	dec := json.NewDecoder(bytes.NewReader([]byte(args)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ptr.Interface()); err != nil {
		return nil, errs.Wrap(errs.KindParse, "tools", fmt.Errorf("invalid arguments for %s: %w", tc.Function.Name, err))
	}
	if dec.More() {
		return nil, errs.Newf(errs.KindParse, "tools", "invalid arguments for %s: trailing data", tc.Function.Name)
	}
	if missing := missingRequired(ptr.Elem()); len(missing) > 0 {
		return nil, errs.Newf(errs.KindParse, "tools", "invalid arguments for %s: missing %s", tc.Function.Name, strings.Join(missing, ", "))
	}

	return ptr.Elem().Interface().(Invocation), nil
}

// Output is what a tool reports back to the model.
type Output struct {
	Tool   string      `json:"tool"`
	Result any         `json:"result,omitempty"`
	Error  *errs.Error `json:"error,omitempty"`
}

// Failure builds an Output from an error.
func Failure(tool string, err error) Output {
	return Output{Tool: tool, Error: errs.As(err, errs.KindUpstreamAPI)}
}

// JSON serializes o for a tool message.
func (o Output) JSON() string {
	b, err := json.Marshal(o)
	if err != nil {
		b, _ = json.Marshal(Output{Tool: o.Tool, Error: errs.Wrap(errs.KindParse, "tools", err)})
	}
	return string(b)
}

// Now formats t in loc the way the current-time tool reports it.
func Now(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return "The current date and time is: " + t.Format("2006-01-02 15:04:05")
}
