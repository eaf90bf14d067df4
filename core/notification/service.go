package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/estbm/soutenances/core"
)

var (
	NowFunc = time.Now // mockable

	maxPending     = 50
	subscriberBuf  = 16
	persistTimeout = 2 * time.Second
)

// Center is the in-process toast hub. Toasts are pushed to the recipient's live subscribers, or queued
// until their next page is rendered when none received them. Resolved ones are recorded in the history.
type Center struct {
	repo   Repository
	logger core.Logger

	mu      sync.Mutex
	quiet   bool
	pending map[string][]Toast
	subs    map[string]map[chan Toast]struct{}
}

var _ Notifier = (*Center)(nil)

func NewCenter(repo Repository, logger core.Logger) *Center {
	return &Center{
		repo:    repo,
		logger:  logger,
		pending: make(map[string][]Toast),
		subs:    make(map[string]map[chan Toast]struct{}),
	}
}

// SetQuietMode drops info and loading toasts while enabled; outcomes (success, warning, error) always pass.
func (c *Center) SetQuietMode(quiet bool) {
	c.mu.Lock()
	c.quiet = quiet
	c.mu.Unlock()
}

func (c *Center) QuietMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quiet
}

func (c *Center) Info(ctx context.Context, title, msg string) {
	c.show(ctx, newToast("", KindInfo, title, msg))
}

func (c *Center) Success(ctx context.Context, title, msg string) {
	c.show(ctx, newToast("", KindSuccess, title, msg))
}

func (c *Center) Warning(ctx context.Context, title, msg string) {
	c.show(ctx, newToast("", KindWarning, title, msg))
}

func (c *Center) Error(ctx context.Context, title, msg string) {
	c.show(ctx, newToast("", KindError, title, msg))
}

func (c *Center) Loading(ctx context.Context, title, msg string) string {
	t := newToast("", KindLoading, title, msg)
	c.show(ctx, t)
	return t.ID
}

func (c *Center) OperationSuccess(ctx context.Context, id, title, msg string) {
	c.show(ctx, newToast(id, KindSuccess, title, msg))
}

func (c *Center) OperationError(ctx context.Context, id, title, msg string) {
	c.show(ctx, newToast(id, KindError, title, msg))
}

// Drain returns and forgets the toasts waiting for recipient, oldest first.
func (c *Center) Drain(recipient string) []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	toasts := c.pending[recipient]
	delete(c.pending, recipient)
	if toasts == nil {
		return []Toast{}
	}
	return toasts
}

// Subscribe streams the toasts shown to recipient from now on. The returned func must be called to unsubscribe.
// Slow subscribers miss toasts rather than block the sender.
func (c *Center) Subscribe(recipient string) (<-chan Toast, func()) {
	ch := make(chan Toast, subscriberBuf)

	c.mu.Lock()
	if c.subs[recipient] == nil {
		c.subs[recipient] = make(map[chan Toast]struct{})
	}
	c.subs[recipient][ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs[recipient], ch)
			if len(c.subs[recipient]) == 0 {
				delete(c.subs, recipient)
			}
			c.mu.Unlock()
			close(ch)
		})
	}
}

// History returns the last toasts recorded for recipient, newest first.
func (c *Center) History(ctx context.Context, recipient string, limit int) ([]Toast, error) {
	if c.repo == nil {
		return []Toast{}, nil
	}
	return c.repo.QueryToasts(ctx, recipient, limit)
}

func (c *Center) show(ctx context.Context, t Toast) {
	recipient := RecipientFrom(ctx)
	if recipient == "" {
		c.debug(fmt.Sprintf("toast without recipient dropped: %s - %s", t.Title, t.Message))
		return
	}

	c.mu.Lock()
	if c.quiet && (t.Kind == KindInfo || t.Kind == KindLoading) {
		c.mu.Unlock()
		return
	}

	queue := c.pending[recipient]
	// a resolved operation replaces its loading toast
	for i, p := range queue {
		if p.ID == t.ID {
			queue = append(queue[:i:i], queue[i+1:]...)
			break
		}
	}

	// sends never block, so holding the lock keeps them safe from a concurrent unsubscribe
	delivered := false
	for ch := range c.subs[recipient] {
		select {
		case ch <- t:
			delivered = true
		default:
		}
	}

	// a toast pushed live is not shown again by the next page
	if !delivered {
		if len(queue) >= maxPending {
			queue = queue[len(queue)-maxPending+1:]
		}
		queue = append(queue, t)
	}
	if len(queue) == 0 {
		delete(c.pending, recipient)
	} else {
		c.pending[recipient] = queue
	}
	c.mu.Unlock()

	if !t.IsLoading() {
		c.persist(ctx, recipient, t)
	}
}

func (c *Center) persist(ctx context.Context, recipient string, t Toast) {
	if c.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := c.repo.SaveToast(ctx, recipient, t); err != nil && c.logger != nil {
		c.logger.Error(fmt.Sprintf("saving toast: %v", err), err)
	}
}

func (c *Center) debug(msg string) {
	if c.logger != nil {
		c.logger.Debug(msg)
	}
}

func newToast(id string, kind Kind, title, msg string) Toast {
	if id == "" {
		id = uuid.New().String()
	}
	return Toast{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Message:   msg,
		CreatedAt: NowFunc().UTC(),
		Duration:  durations[kind],
	}
}
