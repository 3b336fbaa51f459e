package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/framegraph/internal/ir"
)

// WriteReport archives a compile report and its slot table in one
// transaction, returning the new report's ID.
//
// The report is stored as canonical JSON so the stored bytes hash the same
// way everywhere.
func (s *Store) WriteReport(ctx context.Context, r *ir.CompileReport) (string, error) {
	reportJSON, err := ir.MarshalCanonical(r)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	layoutHash, err := ir.LayoutHash(r)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write report: begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM reports`).Scan(&seq); err != nil {
		return "", fmt.Errorf("write report: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reports
		(id, seq, graph, spec_hash, layout_hash, ir_version, compiler_version, frame, pass_count, report)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id.String(),
		seq,
		r.Graph,
		r.SpecHash,
		layoutHash,
		r.IRVersion,
		ir.CompilerVersion,
		r.Frame,
		len(r.Passes),
		string(reportJSON),
	)
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}

	for _, slot := range r.Slots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO slots (report_id, slot, kind, format, capacity, residents)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id.String(), slot.Index, slot.Kind, slot.Format, slot.Capacity, len(slot.Residents))
		if err != nil {
			return "", fmt.Errorf("write report: slot %d: %w", slot.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write report: commit: %w", err)
	}
	return id.String(), nil
}
