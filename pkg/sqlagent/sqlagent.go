// Package sqlagent answers transit questions by asking the model for SQL and running it against
// the configured GTFS databases.
package sqlagent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/barekit/rihlat/pkg/errs"
	"github.com/barekit/rihlat/pkg/llm"
	"github.com/barekit/rihlat/pkg/prompt"
	"github.com/barekit/rihlat/pkg/schema"
	"github.com/barekit/rihlat/pkg/sqlguard"
	"github.com/barekit/rihlat/pkg/transitdb"
)

// DefaultMaxRows caps the rows returned by Execute.
const DefaultMaxRows = 100

// Query is one generated statement and the database it targets.
type Query struct {
	Database string `json:"database"`
	SQL      string `json:"sql"`
}

func (q Query) String() string {
	return q.Database + "|" + q.SQL
}

// Result is what a question produced. Exactly one of Rows or Error is meaningful.
type Result struct {
	Database string      `json:"database,omitempty"`
	Query    string      `json:"query,omitempty"`
	Columns  []string    `json:"columns,omitempty"`
	Rows     [][]any     `json:"rows"`
	Error    *errs.Error `json:"error,omitempty"`
}

// Agent generates and executes SQL.
type Agent struct {
	LLM          llm.Provider
	DBs          *transitdb.Set
	Schemas      *schema.Cache
	TopK         int
	MaxRows      int
	Dialect      string
	AllowWrites  bool
	QueryTimeout time.Duration
	Logger       *slog.Logger
}

// Option is a function that configures an Agent.
type Option func(*Agent)

// New creates an Agent over dbs.
func New(provider llm.Provider, dbs *transitdb.Set, opts ...Option) *Agent {
	a := &Agent{
		LLM:     provider,
		DBs:     dbs,
		Schemas: schema.NewCache(),
		TopK:    prompt.DefaultLimit,
		MaxRows: DefaultMaxRows,
		Logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// WithTopK sets the default result limit placed in the prompt.
func WithTopK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.TopK = k
		}
	}
}

// WithMaxRows sets the hard cap on returned rows.
func WithMaxRows(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.MaxRows = n
		}
	}
}

// WithDialect overrides the dialect named in the prompt.
func WithDialect(d string) Option {
	return func(a *Agent) {
		a.Dialect = d
	}
}

// WithAllowWrites disables the read-only check.
func WithAllowWrites(allow bool) Option {
	return func(a *Agent) {
		a.AllowWrites = allow
	}
}

// WithQueryTimeout bounds each statement execution.
func WithQueryTimeout(d time.Duration) Option {
	return func(a *Agent) {
		a.QueryTimeout = d
	}
}

// WithSchemaCache shares a schema cache between agents.
func WithSchemaCache(c *schema.Cache) Option {
	return func(a *Agent) {
		a.Schemas = c
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		a.Logger = l
	}
}

// Schema renders every configured database.
func (a *Agent) Schema(ctx context.Context) (string, error) {
	var descs []*schema.Descriptor
	for _, name := range a.DBs.Names() {
		h, _ := a.DBs.Get(name)
		d, err := a.Schemas.Get(ctx, name, h.DB)
		if err != nil {
			return "", err
		}
		descs = append(descs, d)
	}
	return schema.Render(descs...), nil
}

// Generate asks the model for a single query answering question.
func (a *Agent) Generate(ctx context.Context, question string, limit int) (Query, error) {
	if limit <= 0 {
		limit = a.TopK
	}
	rendered, err := a.Schema(ctx)
	if err != nil {
		return Query{}, err
	}

	dialect := a.Dialect
	if dialect == "" {
		dialect = a.DBs.Dialect()
	}
	p := prompt.Build(prompt.Input{
		Schema:    rendered,
		Question:  question,
		Limit:     limit,
		Dialect:   dialect,
		Databases: a.DBs.Names(),
	})

	raw, err := llm.Complete(ctx, a.LLM, p.System, p.Human)
	if err != nil {
		return Query{}, errs.Wrap(errs.KindUpstreamAPI, "sqlagent", err)
	}
	a.Logger.Debug("generated query", "question", question, "raw", raw)

	return ParseQuery(raw, a.DBs.Names())
}

// ParseQuery splits model output into a Query.
//
// With several databases the output must be "<name>|<sql>", split on the first '|'.
// With one database an optional "<name>|" prefix is stripped.
func ParseQuery(raw string, names []string) (Query, error) {
	raw = strings.TrimSpace(raw)
	if len(names) == 0 {
		return Query{}, errs.New(errs.KindConfiguration, "sqlagent", "no transit database configured")
	}

	if len(names) == 1 {
		sql := raw
		if prefix, rest, ok := strings.Cut(raw, "|"); ok && strings.TrimSpace(prefix) == names[0] {
			sql = strings.TrimSpace(rest)
		}
		if sql == "" {
			return Query{}, errs.New(errs.KindParse, "sqlagent", "model returned an empty query")
		}
		return Query{Database: names[0], SQL: sql}, nil
	}

	name, sql, ok := strings.Cut(raw, "|")
	if !ok {
		return Query{}, errs.Newf(errs.KindParse, "sqlagent", "expected <database>|<query>, got %q", raw)
	}
	name, sql = strings.TrimSpace(name), strings.TrimSpace(sql)
	if name == "" || sql == "" {
		return Query{}, errs.Newf(errs.KindParse, "sqlagent", "expected <database>|<query>, got %q", raw)
	}
	for _, n := range names {
		if n == name {
			return Query{Database: name, SQL: sql}, nil
		}
	}
	return Query{}, errs.Newf(errs.KindConfiguration, "sqlagent", "unknown database %q", name)
}

// Execute runs q and collects at most MaxRows rows. Failures are reported in Result.Error.
func (a *Agent) Execute(ctx context.Context, q Query) Result {
	res := Result{Database: q.Database, Query: q.SQL, Rows: [][]any{}}

	h, ok := a.DBs.Get(q.Database)
	if !ok {
		res.Error = errs.Newf(errs.KindConfiguration, "sqlagent", "unknown database %q", q.Database)
		return res
	}
	if !a.AllowWrites {
		if err := sqlguard.Check(q.SQL); err != nil {
			res.Error = errs.As(err, errs.KindDatabase)
			return res
		}
	}

	if a.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.QueryTimeout)
		defer cancel()
	}

	rows, err := h.DB.WithContext(ctx).Raw(q.SQL).Rows()
	if err != nil {
		res.Error = errs.Wrap(errs.KindDatabase, "sqlagent", err)
		return res
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		res.Error = errs.Wrap(errs.KindDatabase, "sqlagent", err)
		return res
	}
	res.Columns = cols

	for rows.Next() {
		if len(res.Rows) >= a.MaxRows {
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			res.Error = errs.Wrap(errs.KindDatabase, "sqlagent", fmt.Errorf("failed to scan row: %w", err))
			return res
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		res.Error = errs.Wrap(errs.KindDatabase, "sqlagent", err)
	}

	a.Logger.Debug("executed query", "database", q.Database, "rows", len(res.Rows))
	return res
}

// Ask generates a query for question and executes it. It never returns a Go error; every
// failure is captured in Result.Error.
func (a *Agent) Ask(ctx context.Context, question string, limit int) Result {
	q, err := a.Generate(ctx, question, limit)
	if err != nil {
		return Result{Rows: [][]any{}, Error: errs.As(err, errs.KindUpstreamAPI)}
	}
	return a.Execute(ctx, q)
}
