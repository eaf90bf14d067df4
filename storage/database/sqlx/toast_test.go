package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estbm/soutenances/core/notification"
	"github.com/estbm/soutenances/tests"
)

func TestToastRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := NewToastRepository(db)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := notification.Toast{ID: uuid.New().String(), Kind: notification.KindSuccess, Title: "Créneaux", Message: "3 créneau(x) trouvé(s)", CreatedAt: now}
	second := notification.Toast{ID: uuid.New().String(), Kind: notification.KindError, Title: "Erreur", CreatedAt: now.Add(time.Second)}
	require.NoError(t, repo.SaveToast(ctx, "3", first))
	require.NoError(t, repo.SaveToast(ctx, "3", second))
	require.NoError(t, repo.SaveToast(ctx, "7", notification.Toast{ID: uuid.New().String(), Kind: notification.KindInfo, CreatedAt: now}))

	toasts, err := repo.QueryToasts(ctx, "3", 10)
	require.NoError(t, err)
	require.Len(t, toasts, 2)
	assert.Equal(t, second.ID, toasts[0].ID)
	assert.Equal(t, first.Message, toasts[1].Message)
	assert.True(t, first.CreatedAt.Equal(toasts[1].CreatedAt))

	// upsert
	first.Message = "mis à jour"
	require.NoError(t, repo.SaveToast(ctx, "3", first))
	toasts, err = repo.QueryToasts(ctx, "3", 1)
	require.NoError(t, err)
	require.Len(t, toasts, 1)
	assert.Equal(t, second.ID, toasts[0].ID)
}
