package web

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/visaslot/internal/domain/visa"
)

const (
	statusAvailable = "Available"
	statusWaitlist  = "Waitlist"
	statusPending   = "Checking…"
)

// Region is what one country's card on the dashboard shows.
type Region struct {
	Country   visa.CountryCode `json:"country"`
	Available bool             `json:"available"`
	Status    string           `json:"status"`
	WaitTime  string           `json:"waitTime"`
	Slots     string           `json:"slots"`
	WaitDays  int              `json:"waitDays"`
	SlotCount int              `json:"slotCount"`
	Busy      bool             `json:"busy"`
}

type BoardView struct {
	Regions   []Region  `json:"regions"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Board renders slot snapshots into one region per configured country. Each
// Render replaces every region; countries outside the configured set have no
// region and are ignored.
type Board struct {
	countries []visa.CountryCode
	now       func() time.Time

	mu        sync.RWMutex
	regions   map[visa.CountryCode]Region
	updatedAt time.Time
}

func NewBoard(countries []visa.CountryCode) *Board {
	b := &Board{
		countries: append([]visa.CountryCode(nil), countries...),
		now:       time.Now,
		regions:   make(map[visa.CountryCode]Region, len(countries)),
	}
	for _, c := range countries {
		b.regions[c] = Region{Country: c, Status: statusPending}
	}
	return b
}

func (b *Board) Render(snaps []visa.SlotSnapshot) {
	next := make(map[visa.CountryCode]Region, len(b.countries))
	for _, c := range b.countries {
		next[c] = Region{Country: c, Status: statusPending}
	}
	for _, s := range snaps {
		if _, ok := next[s.Country]; ok {
			next[s.Country] = regionFor(s)
		}
	}

	b.mu.Lock()
	b.regions = next
	b.updatedAt = b.now().UTC()
	b.mu.Unlock()
}

func (b *Board) Region(c visa.CountryCode) (Region, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.regions[c]
	return r, ok
}

// View returns the regions in configured order.
func (b *Board) View() BoardView {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := BoardView{Regions: make([]Region, 0, len(b.countries)), UpdatedAt: b.updatedAt}
	for _, c := range b.countries {
		out.Regions = append(out.Regions, b.regions[c])
	}
	return out
}

func (b *Board) Has(c visa.CountryCode) bool {
	for _, x := range b.countries {
		if x == c {
			return true
		}
	}
	return false
}

func regionFor(s visa.SlotSnapshot) Region {
	r := Region{
		Country:   s.Country,
		Available: s.Available,
		Status:    statusWaitlist,
		WaitTime:  plural(s.WaitDays, "day"),
		Slots:     plural(s.SlotCount, "slot"),
		WaitDays:  s.WaitDays,
		SlotCount: s.SlotCount,
	}
	if s.Available {
		r.Status = statusAvailable
	}
	return r
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
