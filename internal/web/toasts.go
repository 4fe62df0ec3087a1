package web

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/visaslot/internal/application/booking"
)

const (
	successTTL = 5 * time.Second
	errorTTL   = 4 * time.Second
)

type Toast struct {
	ID        string       `json:"id"`
	Kind      booking.Kind `json:"kind"`
	Style     string       `json:"style"` // success | error
	RequestID string       `json:"requestId"`
	Message   string       `json:"message"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// Toasts is the dashboard's notification feed. Success toasts live 5s, error
// toasts 4s.
type Toasts struct {
	now func() time.Time

	mu    sync.Mutex
	items []Toast
}

func NewToasts() *Toasts { return &Toasts{now: time.Now} }

func (t *Toasts) Notify(_ context.Context, n booking.Notification) {
	style, ttl := "success", successTTL
	if n.Kind != booking.KindSuccess {
		style, ttl = "error", errorTTL
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.pruneLocked(now)
	t.items = append(t.items, Toast{
		ID:        uuid.NewString(),
		Kind:      n.Kind,
		Style:     style,
		RequestID: n.RequestID,
		Message:   n.Message,
		ExpiresAt: now.Add(ttl),
	})
}

// Active returns the unexpired toasts, oldest first.
func (t *Toasts) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pruneLocked(t.now())
	return append([]Toast{}, t.items...)
}

func (t *Toasts) pruneLocked(now time.Time) {
	kept := t.items[:0]
	for _, it := range t.items {
		if now.Before(it.ExpiresAt) {
			kept = append(kept, it)
		}
	}
	t.items = kept
}
