package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const recordColumns = "id, kind, status, version, payload, created_at, updated_at"

// Create inserts a new record into the given collection. The store assigns
// the id, the default status and both timestamps; payload is stored as-is.
func (s *Store) Create(kind Kind, payload map[string]any) (*Record, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	rec := &Record{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		Version:   1,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err = s.sql.Exec(`
		INSERT INTO records (id, kind, status, version, payload, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?)`,
		rec.ID, string(rec.Kind), string(rec.Status), rec.Version,
		string(raw), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert %s record: %w", kind, err)
	}
	return rec, nil
}

// UpdateStatus sets the status of the record with the given id and returns the
// post-update record. When expectedVersion is positive the write is rejected
// with ErrVersionConflict if the stored version differs; when it is zero the
// write is unconditional and last-write-wins.
func (s *Store) UpdateStatus(kind Kind, id string, status Status, expectedVersion int64) (*Record, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	tx, err := s.sql.Begin()
	if err != nil {
		return nil, fmt.Errorf("update %s record: %w", kind, err)
	}
	defer tx.Rollback()

	rec, err := scanRecord(tx.QueryRow(
		`SELECT `+recordColumns+` FROM records WHERE kind = ? AND id = ?`,
		string(kind), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s record: %w", kind, err)
	}
	if expectedVersion > 0 && expectedVersion != rec.Version {
		return nil, fmt.Errorf("%w: expected version %d, record is at %d",
			ErrVersionConflict, expectedVersion, rec.Version)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	if _, err := tx.Exec(
		`UPDATE records SET status = ?, version = version + 1, updated_at = ? WHERE kind = ? AND id = ?`,
		string(status), now.UnixMilli(), string(kind), id,
	); err != nil {
		return nil, fmt.Errorf("update %s record: %w", kind, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update %s record: %w", kind, err)
	}

	rec.Status = status
	rec.Version++
	rec.UpdatedAt = now
	return rec, nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(kind Kind, id string) (*Record, error) {
	rec, err := scanRecord(s.sql.QueryRow(
		`SELECT `+recordColumns+` FROM records WHERE kind = ? AND id = ?`,
		string(kind), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// List returns every record in the collection, newest first.
func (s *Store) List(kind Kind) ([]*Record, error) {
	rows, err := s.sql.Query(
		`SELECT `+recordColumns+` FROM records WHERE kind = ? ORDER BY created_at DESC, id`,
		string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// rowScanner is implemented by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var kind, status, payload string
	var createdAt, updatedAt int64
	err := row.Scan(&rec.ID, &kind, &status, &rec.Version, &payload, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.Status = Status(status)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode payload for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
