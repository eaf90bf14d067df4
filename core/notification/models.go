package notification

import (
	"context"
	"time"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
	KindWarning Kind = "warning"
	KindLoading Kind = "loading"
)

// display durations
var durations = map[Kind]time.Duration{
	KindSuccess: 4 * time.Second,
	KindError:   6 * time.Second,
	KindInfo:    4 * time.Second,
	KindWarning: 5 * time.Second,
	KindLoading: 0, // until resolved
}

type Toast struct {
	ID        string        `json:"id" db:"id"`
	Kind      Kind          `json:"kind" db:"kind"`
	Title     string        `json:"title" db:"title"`
	Message   string        `json:"message" db:"message"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"` // UTC
	Duration  time.Duration `json:"duration" db:"-"`
}

func (t Toast) IsLoading() bool { return t.Kind == KindLoading }

// Notifier shows toasts to the recipient carried by the context.
type Notifier interface {
	Info(ctx context.Context, title, msg string)
	Success(ctx context.Context, title, msg string)
	Warning(ctx context.Context, title, msg string)
	Error(ctx context.Context, title, msg string)

	// Loading shows a pending toast and returns its ID, to be resolved by OperationSuccess or OperationError.
	Loading(ctx context.Context, title, msg string) string
	OperationSuccess(ctx context.Context, id, title, msg string)
	OperationError(ctx context.Context, id, title, msg string)
}

// Repository keeps the history of shown toasts.
type Repository interface {
	SaveToast(ctx context.Context, recipient string, toast Toast) error
	QueryToasts(ctx context.Context, recipient string, limit int) ([]Toast, error)
}

type recipientKey struct{}

// WithRecipient returns a copy of ctx whose toasts go to recipient.
func WithRecipient(ctx context.Context, recipient string) context.Context {
	return context.WithValue(ctx, recipientKey{}, recipient)
}

// RecipientFrom returns the recipient carried by ctx, "" if none.
func RecipientFrom(ctx context.Context) string {
	r, _ := ctx.Value(recipientKey{}).(string)
	return r
}
