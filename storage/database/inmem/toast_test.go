package inmemdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estbm/soutenances/core/notification"
)

func TestToastRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewToastRepository()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		toast := notification.Toast{
			ID: fmt.Sprintf("t%d", i), Kind: notification.KindSuccess, Title: "Créneaux",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.SaveToast(ctx, "3", toast))
	}
	require.NoError(t, repo.SaveToast(ctx, "7", notification.Toast{ID: "other", CreatedAt: now}))

	toasts, err := repo.QueryToasts(ctx, "3", 0)
	require.NoError(t, err)
	require.Len(t, toasts, 3)
	assert.Equal(t, "t2", toasts[0].ID, "newest first")

	toasts, err = repo.QueryToasts(ctx, "3", 2)
	require.NoError(t, err)
	assert.Len(t, toasts, 2)

	// same ID replaces
	require.NoError(t, repo.SaveToast(ctx, "3", notification.Toast{ID: "t0", Kind: notification.KindError, CreatedAt: now}))
	toasts, _ = repo.QueryToasts(ctx, "3", 0)
	assert.Len(t, toasts, 3)
	assert.Equal(t, notification.KindError, toasts[2].Kind)

	toasts, err = repo.QueryToasts(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.NotNil(t, toasts)
	assert.Empty(t, toasts)
}

func TestToastRepository_bounded(t *testing.T) {
	ctx := context.Background()
	repo := NewToastRepository()
	for i := 0; i < maxPerRecipient+5; i++ {
		_ = repo.SaveToast(ctx, "3", notification.Toast{ID: fmt.Sprint(i), CreatedAt: time.Unix(int64(i), 0)})
	}
	toasts, _ := repo.QueryToasts(ctx, "3", 0)
	assert.Len(t, toasts, maxPerRecipient)
	assert.Equal(t, fmt.Sprint(maxPerRecipient+4), toasts[0].ID)
}
