package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/estbm/soutenances/core/notification"
)

// maxPerRecipient bounds the history kept for each recipient.
const maxPerRecipient = 200

// ToastRepository keeps the notification history in memory, when no database is configured.
type ToastRepository struct {
	mu    sync.RWMutex
	table map[string][]notification.Toast // {recipient: toasts (oldest first)}
}

var _ notification.Repository = (*ToastRepository)(nil)

func NewToastRepository() *ToastRepository {
	return &ToastRepository{table: make(map[string][]notification.Toast)}
}

func (repo *ToastRepository) SaveToast(_ context.Context, recipient string, toast notification.Toast) error {
	repo.mu.Lock()
	defer repo.mu.Unlock()

	toasts := repo.table[recipient]
	for i, t := range toasts {
		if t.ID == toast.ID {
			toasts[i] = toast
			return nil
		}
	}
	toasts = append(toasts, toast)
	if len(toasts) > maxPerRecipient {
		toasts = toasts[len(toasts)-maxPerRecipient:]
	}
	repo.table[recipient] = toasts
	return nil
}

func (repo *ToastRepository) QueryToasts(_ context.Context, recipient string, limit int) ([]notification.Toast, error) {
	repo.mu.RLock()
	toasts := make([]notification.Toast, len(repo.table[recipient]))
	copy(toasts, repo.table[recipient])
	repo.mu.RUnlock()

	sort.SliceStable(toasts, func(i, j int) bool { return toasts[i].CreatedAt.After(toasts[j].CreatedAt) })
	if limit > 0 && len(toasts) > limit {
		toasts = toasts[:limit]
	}
	return toasts, nil
}
