package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/revittco/costgate/internal/store"
)

func (d *DB) SaveCustomerContext(ctx context.Context, credential, customerContext string) error {
	if customerContext == "" {
		return store.ErrEmptyContext
	}
	_, err := d.q.ExecContext(ctx, `
		INSERT INTO customer_sessions (credential_hash, customer_context, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (credential_hash) DO UPDATE SET
			customer_context = excluded.customer_context,
			updated_at = excluded.updated_at`,
		store.HashCredential(credential), customerContext, formatTime(time.Now()),
	)
	return err
}

func (d *DB) LoadCustomerContext(ctx context.Context, credential string) (string, error) {
	var customerContext string
	err := d.q.QueryRowContext(ctx, `
		SELECT customer_context FROM customer_sessions WHERE credential_hash = ?`,
		store.HashCredential(credential),
	).Scan(&customerContext)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return customerContext, nil
}

func (d *DB) DeleteCustomerContext(ctx context.Context, credential string) error {
	res, err := d.q.ExecContext(ctx,
		`DELETE FROM customer_sessions WHERE credential_hash = ?`,
		store.HashCredential(credential),
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}
