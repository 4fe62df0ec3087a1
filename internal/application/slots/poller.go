package slots

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/metrics"
)

const DefaultInterval = 30 * time.Second

type Fetcher interface {
	FetchSlots(ctx context.Context, countries []visa.CountryCode) []visa.SlotSnapshot
}

// Poller refreshes slots immediately and then with a fixed delay: a cycle starts
// Interval after the previous one started, or right away when the fetch overran.
// Cycles never overlap.
type Poller struct {
	Source   Fetcher
	Interval time.Duration
	Log      zerolog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewPoller(src Fetcher, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{Source: src, Interval: interval, Log: log, now: time.Now, after: time.After}
}

// Run blocks until ctx is done. onUpdate receives each cycle's full result.
func (p *Poller) Run(ctx context.Context, countries []visa.CountryCode, onUpdate func([]visa.SlotSnapshot)) error {
	for {
		start := p.now()
		snaps := p.Source.FetchSlots(ctx, countries)
		if err := ctx.Err(); err != nil {
			return err
		}
		onUpdate(snaps)
		metrics.RecordPollCycle()

		wait := p.Interval - p.now().Sub(start)
		if wait < 0 {
			p.Log.Warn().Dur("overrun", -wait).Msg("slot fetch exceeded poll interval")
			wait = 0
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.after(wait):
		}
	}
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, countries []visa.CountryCode) []visa.SlotSnapshot

func (f FetcherFunc) FetchSlots(ctx context.Context, countries []visa.CountryCode) []visa.SlotSnapshot {
	return f(ctx, countries)
}
