package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const recordColumns = `id, person_id, person_kind, activity_id, attendance_status,
	arrival_time, verification_status, verification_method, notes, created_at, updated_at`

// PGRepository persists attendance records in Postgres.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

// Insert writes a new record. The unique (person, kind, activity) index maps
// to ErrConflict.
func (r *PGRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records
			(id, person_id, person_kind, activity_id, attendance_status,
			 arrival_time, verification_status, verification_method, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, rec.ID, rec.PersonID, rec.PersonKind, rec.ActivityID, rec.Status,
		rec.ArrivalTime, rec.VerificationStatus, rec.Method, rec.Notes)
	if err := row.Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Record{}, ErrConflict
		}
		return Record{}, err
	}
	return rec, nil
}

// Find returns the record for the tuple, nil when none exists.
func (r *PGRepository) Find(ctx context.Context, personID int64, kind PersonKind, activityID int64) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records
		WHERE person_id = $1 AND person_kind = $2 AND activity_id = $3
	`, personID, kind, activityID)
	return scanRecord(row)
}

// Get returns a record by id, nil when unknown.
func (r *PGRepository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM attendance_records WHERE id = $1
	`, id)
	return scanRecord(row)
}

// UpdateVerification sets the verification status and bumps updated_at.
func (r *PGRepository) UpdateVerification(ctx context.Context, id string, status VerificationStatus) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET verification_status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+recordColumns+`
	`, id, status)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, err
	}
	if rec == nil {
		return Record{}, ErrRecordNotFound
	}
	return *rec, nil
}

// List returns records matching the filter, newest first.
func (r *PGRepository) List(ctx context.Context, f Filter) ([]Record, error) {
	limit, offset := f.Limit, f.Offset
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + recordColumns + ` FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if f.ActivityID != 0 {
		args = append(args, f.ActivityID)
		clauses = append(clauses, fmt.Sprintf("activity_id = $%d", len(args)))
	}
	if f.PersonID != 0 {
		args = append(args, f.PersonID)
		clauses = append(clauses, fmt.Sprintf("person_id = $%d", len(args)))
	}
	if f.PersonKind != "" {
		args = append(args, f.PersonKind)
		clauses = append(clauses, fmt.Sprintf("person_kind = $%d", len(args)))
	}
	if f.VerificationStatus != "" {
		args = append(args, f.VerificationStatus)
		clauses = append(clauses, fmt.Sprintf("verification_status = $%d", len(args)))
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rec.PersonKind, &rec.ActivityID, &rec.Status,
			&rec.ArrivalTime, &rec.VerificationStatus, &rec.Method, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.PersonID, &rec.PersonKind, &rec.ActivityID, &rec.Status,
		&rec.ArrivalTime, &rec.VerificationStatus, &rec.Method, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}
