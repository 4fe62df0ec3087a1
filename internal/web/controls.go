package web

import "sync"

// Controls tracks which booking buttons are disabled while their booking runs.
type Controls struct {
	mu   sync.Mutex
	busy map[string]bool
}

func NewControls() *Controls { return &Controls{busy: map[string]bool{}} }

func (c *Controls) Busy(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[id]
}

func (c *Controls) Control(id string) *Control { return &Control{id: id, c: c} }

// Control is one button; it implements booking.Affordance.
type Control struct {
	id string
	c  *Controls
}

func (ctl *Control) SetBusy(busy bool) {
	ctl.c.mu.Lock()
	defer ctl.c.mu.Unlock()
	if busy {
		ctl.c.busy[ctl.id] = true
		return
	}
	delete(ctl.c.busy, ctl.id)
}
