// Package routing plans public transit itineraries with the Bing Maps Routes API.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/barekit/rihlat/internal/apiclient"
	"github.com/barekit/rihlat/pkg/errs"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL      = "http://dev.virtualearth.net"
	DefaultOptimize     = "time"
	DefaultDistanceUnit = "km"
	DefaultMaxSolutions = 1
)

// Params are the routing inputs. Waypoints needs at least an origin and a destination.
type Params struct {
	Waypoints    []string
	Optimize     string
	Avoid        string
	DistanceUnit string
	DateTime     string
	MaxSolutions int
}

// Itinerary is the first leg of the best route.
type Itinerary struct {
	StartCoords    []float64 `json:"start_coords"`
	EndCoords      []float64 `json:"end_coords"`
	TravelDistance float64   `json:"travelDistance"`
	TravelDuration float64   `json:"travelDuration"`
	Instructions   []string  `json:"instructions"`
}

// Empty reports whether no route was found.
func (it Itinerary) Empty() bool {
	return it.StartCoords == nil && it.EndCoords == nil && len(it.Instructions) == 0
}

// Client calls the transit routes endpoint.
type Client struct {
	base apiclient.Base
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.base.BaseURL = u
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.base.HTTP = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.base.Logger = l.With("component", "routing")
	}
}

// New creates a Client. A missing apiKey is reported by Plan, not here.
func New(apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{base: apiclient.NewBase("routing", apiKey, DefaultBaseURL, timeout)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plan requests a transit route through p.Waypoints.
// A response without route legs yields an empty Itinerary and no error.
func (c *Client) Plan(ctx context.Context, p Params) (Itinerary, error) {
	if err := c.base.RequireKey("BINGMAPS_KEY"); err != nil {
		return Itinerary{}, err
	}
	if len(p.Waypoints) < 2 {
		return Itinerary{}, errs.Newf(errs.KindParse, "routing", "need an origin and a destination, got %d waypoints", len(p.Waypoints))
	}

	q := url.Values{}
	for i, wp := range p.Waypoints {
		q.Set("waypoint."+strconv.Itoa(i+1), wp)
	}
	q.Set("optimize", orDefault(p.Optimize, DefaultOptimize))
	q.Set("distanceUnit", orDefault(p.DistanceUnit, DefaultDistanceUnit))
	if p.Avoid != "" {
		q.Set("avoid", p.Avoid)
	}
	if p.DateTime != "" {
		q.Set("dateTime", p.DateTime)
	}
	maxSolutions := p.MaxSolutions
	if maxSolutions <= 0 {
		maxSolutions = DefaultMaxSolutions
	}
	q.Set("maxSolutions", strconv.Itoa(maxSolutions))
	q.Set("key", c.base.APIKey)

	body, err := c.base.Get(ctx, c.base.URL("/REST/v1/Routes/Transit", q))
	if err != nil {
		return Itinerary{}, err
	}
	if !gjson.ValidBytes(body) {
		return Itinerary{}, errs.New(errs.KindUpstreamAPI, "routing", "malformed response")
	}

	it := parse(body)
	c.base.Logger.Debug("planned route", "waypoints", len(p.Waypoints), "steps", len(it.Instructions))
	return it, nil
}

func parse(body []byte) Itinerary {
	resource := gjson.GetBytes(body, "resourceSets.0.resources.0")
	leg := resource.Get("routeLegs.0")
	if !leg.Exists() {
		return Itinerary{Instructions: []string{}}
	}

	it := Itinerary{
		StartCoords:    coords(leg.Get("actualStart.coordinates")),
		EndCoords:      coords(leg.Get("actualEnd.coordinates")),
		TravelDistance: resource.Get("travelDistance").Float(),
		TravelDuration: resource.Get("travelDuration").Float(),
		Instructions:   []string{},
	}
	leg.Get("itineraryItems.#.instruction.text").ForEach(func(_, v gjson.Result) bool {
		it.Instructions = append(it.Instructions, v.String())
		return true
	})
	return it
}

func coords(r gjson.Result) []float64 {
	if !r.IsArray() {
		return nil
	}
	var out []float64
	for _, v := range r.Array() {
		out = append(out, v.Float())
	}
	return out
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (it Itinerary) String() string {
	if it.Empty() {
		return "no route found"
	}
	return fmt.Sprintf("%.1f km, %.0f min, %d steps", it.TravelDistance, it.TravelDuration/60, len(it.Instructions))
}
