package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "doorsync/internal/db"
	"doorsync/internal/record"
	"doorsync/internal/store"
)

type DiagnosticStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	feed   store.Feed[record.Diagnostic]
}

func NewDiagnosticStore(db *sql.DB, writer *dbpkg.Worker) *DiagnosticStore {
	return &DiagnosticStore{db: db, writer: writer}
}

const diagnosticColumns = `
id, message, service_name, error_kind, code, timestamp_ms, door_id, synced`

func (s *DiagnosticStore) Insert(ctx context.Context, rec record.Diagnostic) (record.Diagnostic, error) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM diagnostic_records WHERE id = ?;", rec.ID).Scan(&exists)
		if err == nil {
			return store.ErrDuplicateID
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("Insert check id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO diagnostic_records(
  id, message, service_name, error_kind, code, timestamp_ms, door_id, synced
) VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.Message, rec.ServiceName, rec.ErrorKind, rec.Code,
			rec.Timestamp.UTC().UnixMilli(), rec.DoorID, boolToInt(rec.Synced),
		); err != nil {
			return fmt.Errorf("Insert diagnostic record: %w", err)
		}
		return nil
	})
	if err != nil {
		return record.Diagnostic{}, err
	}

	s.publish(ctx)
	return rec, nil
}

func (s *DiagnosticStore) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM diagnostic_records WHERE id = ?;", id)
		if err != nil {
			return fmt.Errorf("Delete diagnostic record: %w", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	if removed {
		s.publish(ctx)
	}
	return removed, nil
}

func (s *DiagnosticStore) ListUnsynced(ctx context.Context) ([]record.Diagnostic, error) {
	// Uses idx_diagnostic_records_synced.
	return s.list(ctx,
		"SELECT"+diagnosticColumns+" FROM diagnostic_records WHERE synced = 0 ORDER BY timestamp_ms, id;")
}

func (s *DiagnosticStore) Subscribe(fn func([]record.Diagnostic)) func() {
	return s.feed.Subscribe(fn)
}

func (s *DiagnosticStore) list(ctx context.Context, query string, args ...any) ([]record.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list diagnostic records: %w", err)
	}
	defer rows.Close()

	var out []record.Diagnostic
	for rows.Next() {
		var (
			rec    record.Diagnostic
			tsMs   sql.NullInt64
			synced int
		)
		if err := rows.Scan(&rec.ID, &rec.Message, &rec.ServiceName,
			&rec.ErrorKind, &rec.Code, &tsMs, &rec.DoorID, &synced); err != nil {
			return nil, fmt.Errorf("scan diagnostic record: %w", err)
		}
		rec.Synced = synced == 1
		if tsMs.Valid {
			rec.Timestamp = time.UnixMilli(tsMs.Int64).UTC()
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *DiagnosticStore) publish(ctx context.Context) {
	snap, err := s.list(ctx,
		"SELECT"+diagnosticColumns+" FROM diagnostic_records ORDER BY timestamp_ms, id;")
	if err != nil {
		return
	}
	s.feed.Publish(snap)
}
