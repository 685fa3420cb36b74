package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alecgard/mergeflow/internal/audit"
	"github.com/alecgard/mergeflow/internal/id"
)

// InsertAuditEvents satisfies audit.BatchInserter using the COPY protocol.
func (s *Store) InsertAuditEvents(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []any{nullableID(ev.TeamID), ev.Action, ev.SubjectID.String(), ev.Detail, ev.OccurredAt})
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"audit_events"},
		[]string{"team_id", "action", "subject_id", "detail", "occurred_at"},
		pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copying audit events: %w", err)
	}
	return nil
}

// ListAuditEvents returns the newest events for a team, newest first.
func (s *Store) ListAuditEvents(ctx context.Context, teamID id.ID, limit int) ([]audit.Event, error) {
	// LIMIT NULL returns every row.
	var lim any
	if limit > 0 {
		lim = limit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT COALESCE(team_id, ''), action, subject_id, detail, occurred_at
		 FROM audit_events WHERE team_id = $1
		 ORDER BY occurred_at DESC, seq DESC LIMIT $2`, teamID.String(), lim)
	return collect(rows, err, "listing audit events", func(scan func(...any) error) (audit.Event, error) {
		var ev audit.Event
		err := scan(&ev.TeamID, &ev.Action, &ev.SubjectID, &ev.Detail, &ev.OccurredAt)
		return ev, err
	})
}
