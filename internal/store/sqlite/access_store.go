// Package sqlite implements the Record Store interfaces on top of the
// single-writer SQLite layer in internal/db.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	dbpkg "doorsync/internal/db"
	"doorsync/internal/record"
	"doorsync/internal/store"
)

type AccessStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
	feed   store.Feed[record.Access]
}

func NewAccessStore(db *sql.DB, writer *dbpkg.Worker) *AccessStore {
	return &AccessStore{db: db, writer: writer}
}

const accessColumns = `
id, status, subjects, organizations, vehicle_plate, phone_number, door_id,
entry_time_ms, exit_time_ms, attachments, synced, created_at_ms`

func (s *AccessStore) Insert(ctx context.Context, rec record.Access) (record.Access, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	subjects, organizations, attachments, err := encodeAccessLists(rec)
	if err != nil {
		return record.Access{}, err
	}

	var entryMs, exitMs any
	if !rec.EntryTime.IsZero() {
		entryMs = rec.EntryTime.UTC().UnixMilli()
	}
	if rec.ExitTime != nil {
		exitMs = rec.ExitTime.UTC().UnixMilli()
	}

	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM access_records WHERE id = ?;", rec.ID).Scan(&exists)
		if err == nil {
			return store.ErrDuplicateID
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("Insert check id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_records(
  id, status, subjects, organizations, vehicle_plate, phone_number, door_id,
  entry_time_ms, exit_time_ms, attachments, synced, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, string(rec.Status), subjects, organizations, rec.VehiclePlate,
			rec.PhoneNumber, rec.DoorID, entryMs, exitMs, attachments,
			boolToInt(rec.Synced), rec.CreatedAt.UTC().UnixMilli(),
		); err != nil {
			return fmt.Errorf("Insert access record: %w", err)
		}
		return nil
	})
	if err != nil {
		return record.Access{}, err
	}

	s.publish(ctx)
	return rec, nil
}

func (s *AccessStore) Get(ctx context.Context, id string) (record.Access, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT"+accessColumns+" FROM access_records WHERE id = ?;", id)
	rec, err := scanAccess(row)
	if err == sql.ErrNoRows {
		return record.Access{}, store.ErrNotFound
	}
	if err != nil {
		return record.Access{}, fmt.Errorf("Get access record: %w", err)
	}
	return rec, nil
}

func (s *AccessStore) Update(ctx context.Context, rec record.Access) error {
	subjects, organizations, attachments, err := encodeAccessLists(rec)
	if err != nil {
		return err
	}

	var entryMs, exitMs any
	if !rec.EntryTime.IsZero() {
		entryMs = rec.EntryTime.UTC().UnixMilli()
	}
	if rec.ExitTime != nil {
		exitMs = rec.ExitTime.UTC().UnixMilli()
	}

	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE access_records
SET status = ?, subjects = ?, organizations = ?, vehicle_plate = ?,
    phone_number = ?, door_id = ?, entry_time_ms = ?, exit_time_ms = ?,
    attachments = ?, synced = ?
WHERE id = ?;
`,
			string(rec.Status), subjects, organizations, rec.VehiclePlate,
			rec.PhoneNumber, rec.DoorID, entryMs, exitMs, attachments,
			boolToInt(rec.Synced), rec.ID,
		)
		if err != nil {
			return fmt.Errorf("Update access record: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx)
	return nil
}

func (s *AccessStore) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM access_records WHERE id = ?;", id)
		if err != nil {
			return fmt.Errorf("Delete access record: %w", err)
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

func (s *AccessStore) MarkSynced(ctx context.Context, id string) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE access_records SET synced = 1 WHERE id = ?;", id)
		if err != nil {
			return fmt.Errorf("MarkSynced: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx)
	return nil
}

func (s *AccessStore) ListByStatus(ctx context.Context, status record.Status) ([]record.Access, error) {
	return s.list(ctx,
		"SELECT"+accessColumns+" FROM access_records WHERE status = ? ORDER BY created_at_ms, id;",
		string(status))
}

func (s *AccessStore) ListUnsynced(ctx context.Context) ([]record.Access, error) {
	// Uses idx_access_records_synced.
	return s.list(ctx,
		"SELECT"+accessColumns+" FROM access_records WHERE synced = 0 ORDER BY created_at_ms, id;")
}

func (s *AccessStore) Subscribe(fn func([]record.Access)) func() {
	return s.feed.Subscribe(fn)
}

func (s *AccessStore) list(ctx context.Context, query string, args ...any) ([]record.Access, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list access records: %w", err)
	}
	defer rows.Close()

	var out []record.Access
	for rows.Next() {
		rec, err := scanAccess(rows)
		if err != nil {
			return nil, fmt.Errorf("scan access record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// publish pushes the full current collection to subscribers after a
// mutation.  A snapshot query failure only costs the notification.
func (s *AccessStore) publish(ctx context.Context) {
	snap, err := s.list(ctx,
		"SELECT"+accessColumns+" FROM access_records ORDER BY created_at_ms, id;")
	if err != nil {
		return
	}
	s.feed.Publish(snap)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccess(row rowScanner) (record.Access, error) {
	var (
		rec                                  record.Access
		status, subjects, orgs, attachments  string
		entryMs, exitMs                      sql.NullInt64
		synced                               int
		createdMs                            int64
	)

	err := row.Scan(&rec.ID, &status, &subjects, &orgs, &rec.VehiclePlate,
		&rec.PhoneNumber, &rec.DoorID, &entryMs, &exitMs, &attachments,
		&synced, &createdMs)
	if err != nil {
		return record.Access{}, err
	}

	rec.Status = record.Status(status)
	rec.Synced = synced == 1
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	if entryMs.Valid {
		rec.EntryTime = time.UnixMilli(entryMs.Int64).UTC()
	}
	if exitMs.Valid {
		t := time.UnixMilli(exitMs.Int64).UTC()
		rec.ExitTime = &t
	}

	if err := json.Unmarshal([]byte(subjects), &rec.Subjects); err != nil {
		return record.Access{}, fmt.Errorf("decode subjects: %w", err)
	}
	if err := json.Unmarshal([]byte(orgs), &rec.Organizations); err != nil {
		return record.Access{}, fmt.Errorf("decode organizations: %w", err)
	}
	if err := json.Unmarshal([]byte(attachments), &rec.Attachments); err != nil {
		return record.Access{}, fmt.Errorf("decode attachments: %w", err)
	}

	return rec, nil
}

func encodeAccessLists(rec record.Access) (subjects, organizations, attachments string, err error) {
	sb, err := json.Marshal(emptyIfNil(rec.Subjects))
	if err != nil {
		return "", "", "", fmt.Errorf("encode subjects: %w", err)
	}
	ob, err := json.Marshal(emptyIfNil(rec.Organizations))
	if err != nil {
		return "", "", "", fmt.Errorf("encode organizations: %w", err)
	}
	att := rec.Attachments
	if att == nil {
		att = []record.Attachment{}
	}
	ab, err := json.Marshal(att)
	if err != nil {
		return "", "", "", fmt.Errorf("encode attachments: %w", err)
	}
	return string(sb), string(ob), string(ab), nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
