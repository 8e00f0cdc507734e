package token

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepository persists identity tokens in Postgres.
type PGRepository struct {
	db *sql.DB
}

// NewPGRepository creates a repo.
func NewPGRepository(db *sql.DB) *PGRepository {
	return &PGRepository{db: db}
}

// Issue deactivates the owner's active token and inserts the new one in a
// single transaction, keeping the one-active-per-owner invariant.
func (r *PGRepository) Issue(ctx context.Context, t Token) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE identity_tokens SET active = FALSE
		WHERE owner_id = $1 AND owner_kind = $2 AND active
	`, t.OwnerID, t.OwnerKind); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO identity_tokens (token, owner_id, owner_kind, issued_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
	`, t.Token, t.OwnerID, t.OwnerKind, t.IssuedAt, t.ExpiresAt); err != nil {
		return err
	}
	return tx.Commit()
}

// Get returns a token by its string, nil when unknown.
func (r *PGRepository) Get(ctx context.Context, tokenString string) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, owner_id, owner_kind, issued_at, expires_at, active
		FROM identity_tokens WHERE token = $1
	`, tokenString)
	var t Token
	if err := row.Scan(&t.Token, &t.OwnerID, &t.OwnerKind, &t.IssuedAt, &t.ExpiresAt, &t.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// GetActive returns the owner's active token, nil when none.
func (r *PGRepository) GetActive(ctx context.Context, ownerID int64, kind OwnerKind) (*Token, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, owner_id, owner_kind, issued_at, expires_at, active
		FROM identity_tokens
		WHERE owner_id = $1 AND owner_kind = $2 AND active
	`, ownerID, kind)
	var t Token
	if err := row.Scan(&t.Token, &t.OwnerID, &t.OwnerKind, &t.IssuedAt, &t.ExpiresAt, &t.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

// Deactivate clears the active flag. Unknown tokens update zero rows, which
// keeps the call idempotent.
func (r *PGRepository) Deactivate(ctx context.Context, tokenString string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE identity_tokens SET active = FALSE WHERE token = $1
	`, tokenString)
	return err
}
