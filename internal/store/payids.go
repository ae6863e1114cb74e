package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"payidcheck/internal/payid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusUsable   Status = "usable"
	StatusUnusable Status = "unusable"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUsable, StatusUnusable:
		return true
	}
	return false
}

// Record is a registered PayID and the outcome of its latest liveness check.
type Record struct {
	ID         string     `json:"id"`
	Canonical  string     `json:"canonical"`
	ASCII      string     `json:"ascii,omitempty"`
	Account    string     `json:"account"`
	Domain     string     `json:"domain"`
	DomainACE  string     `json:"domain_ace"`
	Original   string     `json:"original"`
	Status     Status     `json:"status"`
	RecordType string     `json:"record_type,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	Attempts   int        `json:"attempts"`
	CheckedAt  *time.Time `json:"checked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// LivenessResult is one completed liveness attempt.
type LivenessResult struct {
	Status     Status
	RecordType string
	Error      string
	CheckedAt  time.Time
}

const recordColumns = `id::text, canonical, ascii, account, domain, domain_ace, original, status,
	record_type, last_error, attempts, checked_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var r Record
	var checkedAt sql.NullTime
	var status string
	if err := row.Scan(&r.ID, &r.Canonical, &r.ASCII, &r.Account, &r.Domain, &r.DomainACE, &r.Original, &status,
		&r.RecordType, &r.LastError, &r.Attempts, &checkedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return r, err
	}
	r.Status = Status(status)
	if checkedAt.Valid {
		t := checkedAt.Time
		r.CheckedAt = &t
	}
	return r, nil
}

// UpsertPayID registers id by its canonical form. Registering an existing PayID
// again records the new original input and resets it to pending.
func (s *Store) UpsertPayID(ctx context.Context, id payid.Identifier) (Record, error) {
	ascii, _ := id.ASCII()
	row := s.db.QueryRowContext(ctx, `INSERT INTO payids (id, canonical, ascii, account, domain, domain_ace, original)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (canonical) DO UPDATE SET
			original = EXCLUDED.original,
			status = 'pending',
			record_type = '',
			last_error = '',
			attempts = 0,
			updated_at = now()
		RETURNING `+recordColumns,
		uuid.NewString(), id.Canonical(), ascii, id.Account().Canonical(), id.Domain().Canonical(), id.Domain().ACE(), id.Original())
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("upsert payid %s: %w", id.Canonical(), err)
	}
	return rec, nil
}

func (s *Store) GetPayID(ctx context.Context, canonical string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM payids WHERE canonical = $1`, canonical)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// RecordLiveness stores one attempt and bumps the attempt counter.
func (s *Store) RecordLiveness(ctx context.Context, canonical string, result LivenessResult) (Record, error) {
	if !result.Status.Valid() {
		return Record{}, fmt.Errorf("invalid status %q", result.Status)
	}
	checkedAt := result.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, `UPDATE payids SET
			status = $2,
			record_type = $3,
			last_error = $4,
			attempts = attempts + 1,
			checked_at = $5,
			updated_at = now()
		WHERE canonical = $1
		RETURNING `+recordColumns,
		canonical, string(result.Status), result.RecordType, result.Error, checkedAt)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListPayIDs returns the most recently updated records, optionally filtered by status.
func (s *Store) ListPayIDs(ctx context.Context, status Status, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + recordColumns + ` FROM payids`
	args := []any{}
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, string(status))
	}
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
