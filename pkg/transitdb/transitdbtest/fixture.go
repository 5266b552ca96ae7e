// Package transitdbtest builds small GTFS databases for tests.
package transitdbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/barekit/rihlat/pkg/config"
	"github.com/barekit/rihlat/pkg/transitdb"
)

var ddl = []string{
	`CREATE TABLE routes (route_id TEXT PRIMARY KEY, route_short_name TEXT, route_long_name TEXT, route_type INTEGER)`,
	`CREATE TABLE stops (stop_id TEXT PRIMARY KEY, stop_name TEXT, stop_lat REAL, stop_lon REAL)`,
	`CREATE TABLE trips (trip_id TEXT PRIMARY KEY, route_id TEXT, service_id TEXT, trip_headsign TEXT)`,
	`CREATE TABLE stop_times (trip_id TEXT, arrival_time TEXT, departure_time TEXT, stop_id TEXT, stop_sequence INTEGER)`,
	`CREATE TABLE transfers (from_stop_id TEXT, to_stop_id TEXT, transfer_type INTEGER, min_transfer_time INTEGER)`,
}

var seed = []string{
	`INSERT INTO routes VALUES ('r1', 'E101', 'Ibn Battuta - Abu Dhabi', 3)`,
	`INSERT INTO routes VALUES ('r2', 'MGrn', 'Metro Green Line', 1)`,
	`INSERT INTO routes VALUES ('r3', 'MRed', 'Metro Red Line', 1)`,
	`INSERT INTO routes VALUES ('r4', 'F11', 'Dubai Mall - Business Bay', 3)`,
	`INSERT INTO routes VALUES ('r5', 'E101', 'Ibn Battuta - Abu Dhabi (night)', 3)`,
	`INSERT INTO stops VALUES ('s1', 'Dubai Mall', 25.1972, 55.2744)`,
	`INSERT INTO stops VALUES ('s2', 'Ibn Battuta Metro Bus Station', 25.0445, 55.1182)`,
	`INSERT INTO trips VALUES ('t1', 'r1', 'wk', 'Abu Dhabi')`,
	`INSERT INTO stop_times VALUES ('t1', '06:00:00', '06:02:00', 's2', 1)`,
	`INSERT INTO transfers VALUES ('s1', 's2', 2, 300)`,
}

// NewGTFS creates a writable SQLite GTFS database named name in a temp dir.
func NewGTFS(t testing.TB, name string) *transitdb.Handle {
	t.Helper()
	return NewGTFSAt(t, name, filepath.Join(t.TempDir(), name+".db"))
}

// NewGTFSAt is NewGTFS for a caller-chosen file path.
func NewGTFSAt(t testing.TB, name, path string) *transitdb.Handle {
	t.Helper()

	h, err := transitdb.Open(context.Background(), config.Database{Name: name, Driver: "sqlite", DSN: path}, false)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	for _, stmt := range append(ddl, seed...) {
		if err := h.DB.Exec(stmt).Error; err != nil {
			t.Fatalf("fixture %q: %v", stmt, err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := h.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return h
}

// NewSet wraps NewGTFS handles in a transitdb.Set.
func NewSet(t testing.TB, names ...string) *transitdb.Set {
	t.Helper()
	s := transitdb.NewSet()
	for _, n := range names {
		s.Add(NewGTFS(t, n))
	}
	return s
}
