// Package transitdb opens the named GTFS databases the assistant queries.
package transitdb

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/barekit/rihlat/pkg/config"
	"github.com/barekit/rihlat/pkg/errs"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Type string

const (
	TypeSQLite   Type = "sqlite"
	TypePostgres Type = "postgres"
	TypeMySQL    Type = "mysql"
	TypeMSSQL    Type = "mssql"
)

// Dialect returns the SQL dialect name used in generation prompts.
func (t Type) Dialect() string {
	switch t {
	case TypeMSSQL:
		return "tsql"
	default:
		return string(t)
	}
}

// Handle is one opened transit database.
type Handle struct {
	Name string
	Type Type
	DB   *gorm.DB
}

// Set holds every configured database by name.
type Set struct {
	handles map[string]*Handle
	order   []string
}

// Open creates a gorm connection for one database entry.
// SQLite files are opened read-only unless readOnly is false.
func Open(ctx context.Context, db config.Database, readOnly bool) (*Handle, error) {
	var dialector gorm.Dialector
	t := Type(db.Driver)
	switch t {
	case TypeSQLite:
		dsn := db.DSN
		if readOnly {
			dsn = readOnlySQLiteDSN(dsn)
		}
		dialector = sqlite.Open(dsn)
	case TypePostgres:
		dialector = postgres.Open(db.DSN)
	case TypeMySQL:
		dialector = mysql.Open(db.DSN)
	case TypeMSSQL:
		dialector = sqlserver.Open(db.DSN)
	default:
		return nil, errs.Newf(errs.KindConfiguration, "transitdb", "unsupported database driver %q for %s", db.Driver, db.Name)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "transitdb", fmt.Errorf("failed to open %s: %w", db.Name, err))
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "transitdb", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "transitdb", fmt.Errorf("failed to ping %s: %w", db.Name, err))
	}

	return &Handle{Name: db.Name, Type: t, DB: gdb}, nil
}

// OpenAll opens every configured database. On failure the already-opened ones are closed.
func OpenAll(ctx context.Context, cfg *config.Config) (*Set, error) {
	s := NewSet()
	for _, db := range cfg.Transit.Databases {
		h, err := Open(ctx, db, !cfg.Transit.AllowWrites)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Add(h)
	}
	return s, nil
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{handles: make(map[string]*Handle)}
}

// Add registers h, replacing any handle with the same name.
func (s *Set) Add(h *Handle) {
	if _, ok := s.handles[h.Name]; !ok {
		s.order = append(s.order, h.Name)
	}
	s.handles[h.Name] = h
}

// Get returns the handle called name.
func (s *Set) Get(name string) (*Handle, bool) {
	h, ok := s.handles[name]
	return h, ok
}

// Names returns database names in registration order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of databases.
func (s *Set) Len() int {
	return len(s.order)
}

// Single returns the only handle when exactly one database is configured.
func (s *Set) Single() (*Handle, bool) {
	if len(s.order) != 1 {
		return nil, false
	}
	return s.handles[s.order[0]], true
}

// Dialect returns the shared dialect of all handles, or a comma-separated list when they differ.
func (s *Set) Dialect() string {
	seen := make(map[string]bool)
	for _, h := range s.handles {
		seen[h.Type.Dialect()] = true
	}
	dialects := make([]string, 0, len(seen))
	for d := range seen {
		dialects = append(dialects, d)
	}
	sort.Strings(dialects)
	return strings.Join(dialects, ", ")
}

// Close closes every underlying connection pool.
func (s *Set) Close() error {
	var first error
	for _, name := range s.order {
		sqlDB, err := s.handles[name].DB.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func readOnlySQLiteDSN(dsn string) string {
	if dsn == ":memory:" || strings.Contains(dsn, "mode=") {
		return dsn
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "mode=ro"
}
