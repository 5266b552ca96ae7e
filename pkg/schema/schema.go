// Package schema reads table and column metadata from a transit database and renders it
// as prompt text.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/barekit/rihlat/pkg/errs"
	"gorm.io/gorm"
)

// Column is one column and its declared type.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is a table with its columns in declaration order.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// Descriptor describes one database. It is never mutated after Introspect returns.
type Descriptor struct {
	Database string  `json:"database"`
	Tables   []Table `json:"tables"`
}

// Introspect scans the catalog of db. Tables are sorted by name.
func Introspect(ctx context.Context, name string, db *gorm.DB) (*Descriptor, error) {
	m := db.WithContext(ctx).Migrator()

	names, err := m.GetTables()
	if err != nil {
		return nil, errs.Wrap(errs.KindStorageUnavailable, "schema", fmt.Errorf("failed to list tables of %s: %w", name, err))
	}
	sort.Strings(names)

	desc := &Descriptor{Database: name, Tables: make([]Table, 0, len(names))}
	for _, table := range names {
		cols, err := m.ColumnTypes(table)
		if err != nil {
			return nil, errs.Wrap(errs.KindStorageUnavailable, "schema", fmt.Errorf("failed to read columns of %s.%s: %w", name, table, err))
		}
		t := Table{Name: table, Columns: make([]Column, len(cols))}
		for i, c := range cols {
			t.Columns[i] = Column{Name: c.Name(), Type: strings.ToUpper(c.DatabaseTypeName())}
		}
		desc.Tables = append(desc.Tables, t)
	}

	return desc, nil
}

// Table returns the table called name, if present.
func (d *Descriptor) Table(name string) (Table, bool) {
	for _, t := range d.Tables {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return Table{}, false
}

// Render formats descriptors as prompt text. The output depends only on its input.
func Render(descs ...*Descriptor) string {
	var blocks []string
	for _, d := range descs {
		for _, t := range d.Tables {
			var b strings.Builder
			fmt.Fprintf(&b, "Database: %s\nTable: %s", d.Database, t.Name)
			for _, c := range t.Columns {
				fmt.Fprintf(&b, "\n%s: %s", c.Name, c.Type)
			}
			blocks = append(blocks, b.String())
		}
	}
	return strings.Join(blocks, "\n\n")
}

// Cache introspects each database at most once per process.
type Cache struct {
	mu    sync.Mutex
	descs map[string]*Descriptor
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{descs: make(map[string]*Descriptor)}
}

// Get returns the cached descriptor for name, introspecting db on first use.
// Failures are not cached, so a later call tries again.
func (c *Cache) Get(ctx context.Context, name string, db *gorm.DB) (*Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d, ok := c.descs[name]; ok {
		return d, nil
	}
	d, err := Introspect(ctx, name, db)
	if err != nil {
		return nil, err
	}
	c.descs[name] = d
	return d, nil
}
