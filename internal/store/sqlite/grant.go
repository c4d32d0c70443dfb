package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/costgate/internal/store"
)

const grantColumns = `id, client_id, user_id, scope, redirect_uri, encrypted_props,
	code_hash, code_challenge, code_expires_at, created_at`

func (d *DB) CreateGrant(ctx context.Context, g *store.Grant) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	var codeHash *string
	if g.CodeHash != "" {
		codeHash = &g.CodeHash
	}

	_, err := d.q.ExecContext(ctx, `
		INSERT INTO grants (`+grantColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.ClientID, g.UserID, normalizeJSON(g.Scope, "[]"), g.RedirectURI,
		g.EncryptedProps, codeHash, g.CodeChallenge,
		formatTime(g.CodeExpiresAt), formatTime(g.CreatedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) GetGrant(ctx context.Context, id string) (*store.Grant, error) {
	row := d.q.QueryRowContext(ctx,
		`SELECT `+grantColumns+` FROM grants WHERE id = ?`, id)
	return scanGrant(row)
}

func (d *DB) ConsumeGrantCode(ctx context.Context, codeHash string) (*store.Grant, error) {
	var g *store.Grant
	err := d.withTx(ctx, func(q queryable) error {
		var err error
		g, err = scanGrant(q.QueryRowContext(ctx,
			`SELECT `+grantColumns+` FROM grants WHERE code_hash = ?`, codeHash))
		if err != nil {
			return err
		}
		res, err := q.ExecContext(ctx,
			`UPDATE grants SET code_hash = NULL WHERE id = ? AND code_hash = ?`,
			g.ID, codeHash)
		if err != nil {
			return err
		}
		return checkRowsAffected(res)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (d *DB) DeleteGrant(ctx context.Context, id string) error {
	res, err := d.q.ExecContext(ctx, `DELETE FROM grants WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

// DeleteExpiredGrants removes grants whose code expired unredeemed.
func (d *DB) DeleteExpiredGrants(ctx context.Context, before time.Time) (int, error) {
	res, err := d.q.ExecContext(ctx, `
		DELETE FROM grants
		WHERE code_hash IS NOT NULL AND code_expires_at < ?`,
		formatTime(before),
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanGrant(row *sql.Row) (*store.Grant, error) {
	var g store.Grant
	var scope, codeExpiresAt, createdAt string
	var codeHash *string
	err := row.Scan(&g.ID, &g.ClientID, &g.UserID, &scope, &g.RedirectURI,
		&g.EncryptedProps, &codeHash, &g.CodeChallenge, &codeExpiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.Scope = []byte(scope)
	if codeHash != nil {
		g.CodeHash = *codeHash
	}
	g.CodeExpiresAt = parseTime(codeExpiresAt)
	g.CreatedAt = parseTime(createdAt)
	return &g, nil
}
