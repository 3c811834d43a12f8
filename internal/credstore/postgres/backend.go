package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/courierdash/internal/db"
)

// Backend keeps credentials as rows of the credentials table scoped by namespace.
// One namespace per CLI profile
type Backend struct {
	DB        db.DBTX
	Namespace string
}

const getValue = `-- name: Get credential value
SELECT value
FROM credentials
WHERE namespace = $1 AND key = $2
`

func (b *Backend) Get(ctx context.Context, key string) (string, bool, error) {
	rows, _ := b.DB.Query(ctx, getValue, b.Namespace, key)
	value, err := pgx.CollectOneRow(rows, pgx.RowTo[string])

	switch {
	case err == nil:
		return value, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("db error: %w", err)
	}
}

const upsertValue = `-- name: Upsert credential value
INSERT INTO credentials (namespace, key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, key) DO UPDATE
SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
`

// SetMany upserts all values in one transaction
func (b *Backend) SetMany(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}

	return b.inTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for key, value := range values {
			batch.Queue(upsertValue, b.Namespace, key, value)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

const deleteValues = `-- name: Delete credential values
DELETE FROM credentials
WHERE namespace = $1 AND key = ANY($2)
`

func (b *Backend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	_, err := b.DB.Exec(ctx, deleteValues, b.Namespace, keys)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (b *Backend) inTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := b.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("db tx error: %w", err)
	}

	defer func() {
		switch err {
		case nil:
			err = tx.Commit(ctx)
		default:
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
