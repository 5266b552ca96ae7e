package routing

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/llm"
)

const extractSystem = `You are a Routes API Agent responsible for extracting all location mentions from the user's query.

Instructions:
- Identify all locations mentioned in the query, in travel order.
- Return the results only as a JSON array of strings: ["waypoint1", "waypoint2", ...].
- Refrain from adding any additional information or commentary.`

// ExtractWaypoints asks the model for the locations named in question.
// The reply must be a JSON array of at least two non-empty strings.
func ExtractWaypoints(ctx context.Context, p llm.Provider, question string) ([]string, error) {
	raw, err := llm.Complete(ctx, p, extractSystem, "Question: "+question)
	if err != nil {
		return nil, errs.Wrap(errs.KindUpstreamAPI, "routing", err)
	}
	return ParseWaypoints(raw)
}

// ParseWaypoints decodes a JSON array of location names.
func ParseWaypoints(raw string) ([]string, error) {
	var list []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &list); err != nil {
		return nil, errs.Newf(errs.KindParse, "routing", "expected a JSON array of locations, got %q", raw)
	}
	out := make([]string, 0, len(list))
	for _, wp := range list {
		wp = strings.TrimSpace(wp)
		if wp == "" {
			return nil, errs.Newf(errs.KindParse, "routing", "empty location in %q", raw)
		}
		out = append(out, wp)
	}
	if len(out) < 2 {
		return nil, errs.Newf(errs.KindParse, "routing", "need at least two locations, got %d", len(out))
	}
	return out, nil
}

// PlanFromQuestion extracts waypoints from question and plans a route through them.
func (c *Client) PlanFromQuestion(ctx context.Context, p llm.Provider, question string, params Params) (Itinerary, error) {
	if err := c.base.RequireKey("BINGMAPS_KEY"); err != nil {
		return Itinerary{}, err
	}
	wps, err := ExtractWaypoints(ctx, p, question)
	if err != nil {
		return Itinerary{}, err
	}
	params.Waypoints = wps
	return c.Plan(ctx, params)
}
