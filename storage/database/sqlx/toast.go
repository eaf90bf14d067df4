package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/estbm/soutenances/core/notification"
)

const maxHistory = 200

type toastRow struct {
	notification.Toast
	Recipient string `db:"recipient"`
}

type ToastRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*ToastRepository)(nil)

func NewToastRepository(db *sqlx.DB) *ToastRepository {
	return &ToastRepository{db: db}
}

func (repo *ToastRepository) SaveToast(ctx context.Context, recipient string, toast notification.Toast) error {
	const q = `
		INSERT INTO toast (id, recipient, kind, title, message, created_at)
		VALUES (:id, :recipient, :kind, :title, :message, :created_at)
		ON CONFLICT (id) DO UPDATE
		SET kind = EXCLUDED.kind, title = EXCLUDED.title, message = EXCLUDED.message, created_at = EXCLUDED.created_at`

	if _, err := repo.db.NamedExecContext(ctx, q, toastRow{Toast: toast, Recipient: recipient}); err != nil {
		return errors.Wrap(err, "inserting toast")
	}
	return nil
}

// QueryToasts returns the last toasts of recipient, newest first.
func (repo *ToastRepository) QueryToasts(ctx context.Context, recipient string, limit int) ([]notification.Toast, error) {
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	const q = `
		SELECT id, kind, title, message, created_at
		FROM toast
		WHERE recipient = $1
		ORDER BY created_at DESC
		LIMIT $2`

	toasts := make([]notification.Toast, 0)
	if err := repo.db.SelectContext(ctx, &toasts, q, recipient, limit); err != nil {
		return nil, errors.Wrap(err, "selecting toasts")
	}
	return toasts, nil
}
