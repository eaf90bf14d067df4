package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu     sync.Mutex
	toasts map[string][]Toast
}

func newMemRepo() *memRepo { return &memRepo{toasts: make(map[string][]Toast)} }

func (r *memRepo) SaveToast(_ context.Context, recipient string, t Toast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts[recipient] = append(r.toasts[recipient], t)
	return nil
}

func (r *memRepo) QueryToasts(_ context.Context, recipient string, limit int) ([]Toast, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ts := r.toasts[recipient]
	if limit > 0 && len(ts) > limit {
		ts = ts[len(ts)-limit:]
	}
	return append([]Toast(nil), ts...), nil
}

func TestCenter_showAndDrain(t *testing.T) {
	repo := newMemRepo()
	c := NewCenter(repo, nil)
	ctx := WithRecipient(context.Background(), "3")

	c.Info(ctx, "Export", "Téléchargement du fichier en cours...")
	c.Success(ctx, "Supprimé", "Le créneau a été supprimé.")
	c.Warning(ctx, "Attention", "w")
	c.Error(ctx, "Erreur", "e")

	toasts := c.Drain("3")
	require.Len(t, toasts, 4)
	kinds := []Kind{toasts[0].Kind, toasts[1].Kind, toasts[2].Kind, toasts[3].Kind}
	assert.Equal(t, []Kind{KindInfo, KindSuccess, KindWarning, KindError}, kinds)
	assert.Equal(t, 6*time.Second, toasts[3].Duration)
	for _, ts := range toasts {
		assert.NotEmpty(t, ts.ID)
	}

	assert.Empty(t, c.Drain("3"), "drained")
	assert.NotNil(t, c.Drain("unknown"))

	hist, err := c.History(ctx, "3", 10)
	require.NoError(t, err)
	assert.Len(t, hist, 4)
}

func TestCenter_noRecipient(t *testing.T) {
	repo := newMemRepo()
	c := NewCenter(repo, nil)

	c.Error(context.Background(), "Erreur", "e")
	assert.Empty(t, c.Drain(""))
	assert.Empty(t, repo.toasts)
}

func TestCenter_loadingResolved(t *testing.T) {
	repo := newMemRepo()
	c := NewCenter(repo, nil)
	ctx := WithRecipient(context.Background(), "3")

	id := c.Loading(ctx, "Chargement des créneaux...", "Récupération des détails de planification")
	require.NotEmpty(t, id)

	pending := c.Drain("3")
	require.Len(t, pending, 1)
	assert.True(t, pending[0].IsLoading())
	assert.Empty(t, repo.toasts["3"], "loading toasts are not recorded")

	id = c.Loading(ctx, "Chargement des créneaux...", "")
	c.OperationSuccess(ctx, id, "Créneaux", "3 créneau(x) trouvé(s)")

	pending = c.Drain("3")
	require.Len(t, pending, 1, "the outcome replaces its loading toast")
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, KindSuccess, pending[0].Kind)

	id = c.Loading(ctx, "Ajout du créneau...", "")
	c.OperationError(ctx, id, "Ajout créneau", "Impossible d'ajouter le créneau")
	pending = c.Drain("3")
	require.Len(t, pending, 1)
	assert.Equal(t, KindError, pending[0].Kind)

	hist, _ := c.History(ctx, "3", 0)
	assert.Len(t, hist, 2)
}

func TestCenter_quietMode(t *testing.T) {
	c := NewCenter(nil, nil)
	ctx := WithRecipient(context.Background(), "3")
	c.SetQuietMode(true)
	assert.True(t, c.QuietMode())

	id := c.Loading(ctx, "Chargement...", "")
	c.Info(ctx, "Export", "...")
	c.OperationSuccess(ctx, id, "Créneaux", "ok")
	c.Error(ctx, "Erreur", "e")

	toasts := c.Drain("3")
	require.Len(t, toasts, 2)
	assert.Equal(t, KindSuccess, toasts[0].Kind)
	assert.Equal(t, KindError, toasts[1].Kind)

	hist, err := c.History(ctx, "3", 10)
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestCenter_pendingBounded(t *testing.T) {
	c := NewCenter(nil, nil)
	ctx := WithRecipient(context.Background(), "3")
	for i := 0; i < maxPending+10; i++ {
		c.Success(ctx, "ok", "")
	}
	assert.Len(t, c.Drain("3"), maxPending)
}

func TestCenter_Subscribe(t *testing.T) {
	c := NewCenter(nil, nil)
	ctx := WithRecipient(context.Background(), "3")

	ch, unsubscribe := c.Subscribe("3")
	other, unsubscribeOther := c.Subscribe("7")
	defer unsubscribeOther()

	c.Success(ctx, "Créneau ajouté", "Nouveau créneau créé: 09:00 - 09:30")

	select {
	case toast := <-ch:
		assert.Equal(t, "Créneau ajouté", toast.Title)
	case <-time.After(time.Second):
		t.Fatal("toast not delivered")
	}
	assert.Empty(t, c.Drain("3"), "a toast pushed live is not queued")
	select {
	case toast := <-other:
		t.Fatalf("unexpected toast for another recipient: %v", toast)
	default:
	}

	unsubscribe()
	unsubscribe() // idempotent
	_, open := <-ch
	assert.False(t, open)

	// slow subscribers never block the sender
	slow, unsubscribeSlow := c.Subscribe("3")
	defer unsubscribeSlow()
	for i := 0; i < subscriberBuf*2; i++ {
		c.Success(ctx, "ok", "")
	}
	assert.Len(t, slow, subscriberBuf)
	assert.Len(t, c.Drain("3"), subscriberBuf, "missed toasts wait for the next page")
}

func TestRecipient(t *testing.T) {
	assert.Equal(t, "", RecipientFrom(context.Background()))
	assert.Equal(t, "3", RecipientFrom(WithRecipient(context.Background(), "3")))
}
