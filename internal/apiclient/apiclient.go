// Package apiclient holds the request plumbing shared by the third-party API clients.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
)

// DefaultTimeout bounds a request when the caller sets none.
const DefaultTimeout = 30 * time.Second

// maxErrorBody limits how much of a failed response is kept in the error message.
const maxErrorBody = 2048

// Base carries the settings every client shares.
type Base struct {
	Op      string
	APIKey  string
	BaseURL string
	HTTP    *http.Client
	Logger  *slog.Logger
}

// NewBase returns a Base with a timed http.Client.
func NewBase(op, apiKey, baseURL string, timeout time.Duration) Base {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Base{
		Op:      op,
		APIKey:  apiKey,
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
		Logger:  slog.Default().With("component", op),
	}
}

// RequireKey reports a configuration error when no API key is set.
func (b Base) RequireKey(name string) error {
	if b.APIKey == "" {
		return errs.Newf(errs.KindConfiguration, b.Op, "API key is missing: set %s", name)
	}
	return nil
}

// URL joins the base URL with path and query.
func (b Base) URL(path string, q url.Values) string {
	u := b.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// Do sends req and returns the body of a 2xx response.
// Non-2xx responses become KindUpstreamAPI errors carrying the status and body.
func (b Base) Do(req *http.Request) ([]byte, error) {
	start := time.Now()
	resp, err := b.HTTP.Do(req)
	if err != nil {
		return nil, b.transportError(req.Context(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, b.transportError(req.Context(), fmt.Errorf("read response: %w", err))
	}

	b.Logger.Debug("api call", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "latency", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, errs.Upstream(b.Op, resp.StatusCode, msg)
	}
	return body, nil
}

// Get is a convenience for a GET request.
func (b Base) Get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, b.Op, fmt.Errorf("create request: %w", err))
	}
	return b.Do(req)
}

func (b Base) transportError(ctx context.Context, err error) error {
	var ue *url.Error
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded || (errors.As(err, &ue) && ue.Timeout()) {
		return &errs.Error{Kind: errs.KindTimeout, Op: b.Op, Message: "request timed out", Err: err}
	}
	return errs.Wrap(errs.KindUpstreamAPI, b.Op, err)
}
