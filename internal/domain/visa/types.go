package visa

import (
	"encoding/json"
	"strings"
	"time"
)

// CountryCode identifies a supported destination. The configured set is fixed at startup.
type CountryCode string

func ParseCountries(csv string) []CountryCode {
	var out []CountryCode
	for _, p := range strings.Split(csv, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, CountryCode(p))
	}
	return out
}

func JoinCountries(cs []CountryCode) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, string(c))
	}
	return strings.Join(parts, ",")
}

type SlotSnapshot struct {
	Country   CountryCode `json:"country"`
	Available bool        `json:"available"`
	WaitDays  int         `json:"waitDays"`
	SlotCount int         `json:"slotCount"`
}

// UnmarshalJSON also accepts the older waitTime/slots keys still served by some backends.
func (s *SlotSnapshot) UnmarshalJSON(b []byte) error {
	var w struct {
		Country   CountryCode `json:"country"`
		Available bool        `json:"available"`
		WaitDays  *int        `json:"waitDays"`
		SlotCount *int        `json:"slotCount"`
		WaitTime  *int        `json:"waitTime"`
		Slots     *int        `json:"slots"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = SlotSnapshot{Country: w.Country, Available: w.Available}
	switch {
	case w.WaitDays != nil:
		s.WaitDays = *w.WaitDays
	case w.WaitTime != nil:
		s.WaitDays = *w.WaitTime
	}
	switch {
	case w.SlotCount != nil:
		s.SlotCount = *w.SlotCount
	case w.Slots != nil:
		s.SlotCount = *w.Slots
	}
	if s.WaitDays < 0 {
		s.WaitDays = 0
	}
	if s.SlotCount < 0 {
		s.SlotCount = 0
	}
	return nil
}

type BookingRequest struct {
	ID        string
	Country   CountryCode
	ControlID string
	CreatedAt time.Time
}

// Key is the re-entrancy key: one active booking per triggering control.
func (r BookingRequest) Key() string {
	if r.ControlID != "" {
		return r.ControlID
	}
	return "book-" + string(r.Country)
}

type BookingResult struct {
	Country             CountryCode `json:"country"`
	SlotID              string      `json:"slotId"`
	Date                time.Time   `json:"date"`
	ConfirmationChannel string      `json:"confirmationChannel"`
}
