// Package geocode resolves place names to coordinates with the TomTom Search API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/barekit/rihlat/internal/apiclient"
	"github.com/barekit/rihlat/pkg/errs"
)

const (
	DefaultBaseURL  = "https://api.tomtom.com"
	DefaultLimit    = 10
	DefaultLanguage = "en-US"
)

// Params are the search inputs. Zero values are omitted from the request.
type Params struct {
	Query      string
	Limit      int
	Language   string
	CountrySet string
	Lat        *float64
	Lon        *float64
	Radius     int
}

// Location is one geocoding hit.
type Location struct {
	Address      string  `json:"address"`
	Municipality string  `json:"municipality,omitempty"`
	Country      string  `json:"country,omitempty"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Score        float64 `json:"score"`
	Type         string  `json:"type"`
}

// Client calls the TomTom geocoding endpoint.
type Client struct {
	base apiclient.Base
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, mainly for tests.
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
		c.base.Logger = l.With("component", "geocode")
	}
}

// New creates a Client. A missing apiKey is reported by Search, not here.
func New(apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{base: apiclient.NewBase("geocode", apiKey, DefaultBaseURL, timeout)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	Results []struct {
		Type    string  `json:"type"`
		Score   float64 `json:"score"`
		Address struct {
			FreeformAddress string `json:"freeformAddress"`
			Municipality    string `json:"municipality"`
			Country         string `json:"country"`
		} `json:"address"`
		Position struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"position"`
	} `json:"results"`
}

// Search geocodes p.Query and returns at most p.Limit locations.
func (c *Client) Search(ctx context.Context, p Params) ([]Location, error) {
	if err := c.base.RequireKey("TOMTOM_API_KEY"); err != nil {
		return nil, err
	}
	if p.Query == "" {
		return nil, errs.New(errs.KindParse, "geocode", "query is required")
	}

	limit := p.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	lang := p.Language
	if lang == "" {
		lang = DefaultLanguage
	}

	q := url.Values{}
	q.Set("key", c.base.APIKey)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("language", lang)
	if p.CountrySet != "" {
		q.Set("countrySet", p.CountrySet)
	}
	if p.Lat != nil {
		q.Set("lat", strconv.FormatFloat(*p.Lat, 'f', -1, 64))
	}
	if p.Lon != nil {
		q.Set("lon", strconv.FormatFloat(*p.Lon, 'f', -1, 64))
	}
	if p.Radius > 0 {
		q.Set("radius", strconv.Itoa(p.Radius))
	}

	body, err := c.base.Get(ctx, c.base.URL("/search/2/geocode/"+url.PathEscape(p.Query)+".json", q))
	if err != nil {
		return nil, err
	}

	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, errs.Wrap(errs.KindUpstreamAPI, "geocode", fmt.Errorf("malformed response: %w", err))
	}

	locs := make([]Location, 0, len(r.Results))
	for _, res := range r.Results {
		if len(locs) == limit {
			break
		}
		locs = append(locs, Location{
			Address:      res.Address.FreeformAddress,
			Municipality: res.Address.Municipality,
			Country:      res.Address.Country,
			Lat:          res.Position.Lat,
			Lon:          res.Position.Lon,
			Score:        res.Score,
			Type:         res.Type,
		})
	}

	c.base.Logger.Debug("geocoded", "query", p.Query, "results", len(locs))
	return locs, nil
}
