package store

import (
	"database/sql"
	"path/filepath"
	"slices"
	"testing"

	"github.com/roach88/framegraph/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport builds a two-pass report for graph at frame.
func createTestReport(graph string, frame int64) *ir.CompileReport {
	return &ir.CompileReport{
		Graph:     graph,
		SpecHash:  "spec-" + graph,
		IRVersion: ir.IRVersion,
		Frame:     frame,
		Passes: []ir.PassReport{
			{Name: "geometry", Kind: "graphics", Queue: "main", Position: 0},
			{Name: "lighting", Kind: "compute", Queue: "main", Position: 1},
		},
		Slots: []ir.SlotReport{
			{Index: 0, Kind: "image", Format: "rgba8", Capacity: 4096, Residents: []string{"gbuffer"}},
			{Index: 1, Kind: "buffer", Capacity: 1024, Residents: []string{"lights", "tiles"}},
		},
		Resources: []ir.ResourceReport{
			{Key: "gbuffer", Kind: "image", Slot: 0, SourceFrame: frame, Start: 0, End: 1},
			{Key: "lights", Kind: "buffer", Slot: 1, SourceFrame: frame, Start: 0, End: 0},
			{Key: "tiles", Kind: "buffer", Slot: 1, SourceFrame: frame, Start: 1, End: 1},
		},
	}
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(list []string, item string) bool {
	return slices.Contains(list, item)
}
