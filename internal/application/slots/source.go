package slots

import (
	"context"
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/metrics"
)

const (
	fallbackAvailability = 0.3
	maxWaitDays          = 30
	maxSlotCount         = 5
)

type LiveAPI interface {
	LiveSlots(ctx context.Context, countries []visa.CountryCode) ([]visa.SlotSnapshot, error)
}

// Source returns one snapshot per requested country. Backend failures never reach
// the caller: they are logged and replaced with synthesized data.
type Source struct {
	api LiveAPI
	log zerolog.Logger

	randInt   func(n int) int
	randFloat func() float64
}

func NewSource(api LiveAPI, log zerolog.Logger) *Source {
	return &Source{api: api, log: log, randInt: rand.IntN, randFloat: rand.Float64}
}

func (s *Source) FetchSlots(ctx context.Context, countries []visa.CountryCode) []visa.SlotSnapshot {
	live, err := s.api.LiveSlots(ctx, countries)
	if err != nil {
		s.log.Warn().Err(err).Str("source", metrics.SourceFallback).
			Int("countries", len(countries)).Msg("live slots unavailable, serving synthetic data")
		metrics.RecordSlotFetch(metrics.SourceFallback)
		return s.Fallback(countries)
	}

	byCountry := make(map[visa.CountryCode]visa.SlotSnapshot, len(live))
	for _, snap := range live {
		if _, dup := byCountry[snap.Country]; !dup {
			byCountry[snap.Country] = snap
		}
	}

	out := make([]visa.SlotSnapshot, 0, len(countries))
	var missing []string
	for _, c := range countries {
		snap, ok := byCountry[c]
		if !ok {
			missing = append(missing, string(c))
			snap = s.synthesize(c)
		}
		out = append(out, snap)
	}

	if len(missing) > 0 {
		s.log.Warn().Strs("missing", missing).Str("source", metrics.SourcePartial).
			Msg("live slots incomplete, synthesized missing countries")
		metrics.RecordSlotFetch(metrics.SourcePartial)
		return out
	}
	metrics.RecordSlotFetch(metrics.SourceLive)
	return out
}

// Fallback synthesizes plausible availability for every country.
func (s *Source) Fallback(countries []visa.CountryCode) []visa.SlotSnapshot {
	out := make([]visa.SlotSnapshot, 0, len(countries))
	for _, c := range countries {
		out = append(out, s.synthesize(c))
	}
	return out
}

func (s *Source) synthesize(c visa.CountryCode) visa.SlotSnapshot {
	return visa.SlotSnapshot{
		Country:   c,
		Available: s.randFloat() > 1-fallbackAvailability,
		WaitDays:  s.randInt(maxWaitDays) + 1,
		SlotCount: s.randInt(maxSlotCount) + 1,
	}
}
