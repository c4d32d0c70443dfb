package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/revittco/costgate/internal/store"
)

func (d *DB) CreateOAuthClient(ctx context.Context, c *store.OAuthClient) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := d.q.ExecContext(ctx, `
		INSERT INTO oauth_clients (id, name, redirect_uris, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.Name, normalizeJSON(c.RedirectURIs, "[]"), formatTime(c.CreatedAt),
	)
	return mapConstraintError(err)
}

func (d *DB) GetOAuthClient(ctx context.Context, id string) (*store.OAuthClient, error) {
	var c store.OAuthClient
	var redirectURIs, createdAt string
	err := d.q.QueryRowContext(ctx, `
		SELECT id, name, redirect_uris, created_at FROM oauth_clients WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &redirectURIs, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.RedirectURIs = []byte(redirectURIs)
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}
