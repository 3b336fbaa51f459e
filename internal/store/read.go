package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/framegraph/internal/ir"
)

// ErrNotFound is returned when a report ID is not in the archive.
var ErrNotFound = errors.New("report not found")

// ReportSummary is one archived compile, without the full report body.
type ReportSummary struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	Graph         string `json:"graph"`
	SpecHash      string `json:"spec_hash"`
	LayoutHash    string `json:"layout_hash"`
	Frame         int64  `json:"frame"`
	Passes        int    `json:"passes"`
	Slots         int    `json:"slots"`
	TotalCapacity int64  `json:"total_capacity"`
}

// ListFilter narrows ListReports. Zero values match everything.
type ListFilter struct {
	Graph    string
	SpecHash string
	Limit    int
}

// ListReports returns archived reports in archive order.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
// With a Limit, the most recent Limit reports are returned, still oldest first.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ListReports(ctx context.Context, f ListFilter) ([]ReportSummary, error) {
	limit := -1
	if f.Limit > 0 {
		limit = f.Limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT * FROM (
			SELECT r.id, r.seq, r.graph, r.spec_hash, r.layout_hash, r.frame, r.pass_count,
			       COUNT(sl.slot), COALESCE(SUM(sl.capacity), 0)
			FROM reports r
			LEFT JOIN slots sl ON sl.report_id = r.id
			WHERE (? = '' OR r.graph = ?) AND (? = '' OR r.spec_hash = ?)
			GROUP BY r.id
			ORDER BY r.seq DESC, r.id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, f.Graph, f.Graph, f.SpecHash, f.SpecHash, limit)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	summaries := []ReportSummary{}
	for rows.Next() {
		var r ReportSummary
		if err := rows.Scan(&r.ID, &r.Seq, &r.Graph, &r.SpecHash, &r.LayoutHash, &r.Frame, &r.Passes, &r.Slots, &r.TotalCapacity); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		summaries = append(summaries, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return summaries, nil
}

// ReadReport returns the full report stored under id.
func (s *Store) ReadReport(ctx context.Context, id string) (*ir.CompileReport, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM reports WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", id, err)
	}

	var r ir.CompileReport
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &r, nil
}

// LatestReport returns the most recently archived report for graph.
func (s *Store) LatestReport(ctx context.Context, graph string) (*ir.CompileReport, string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM reports WHERE graph = ?
		ORDER BY seq DESC LIMIT 1
	`, graph).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", fmt.Errorf("%w: no reports for graph %q", ErrNotFound, graph)
	}
	if err != nil {
		return nil, "", fmt.Errorf("latest report for %q: %w", graph, err)
	}
	r, err := s.ReadReport(ctx, id)
	return r, id, err
}
