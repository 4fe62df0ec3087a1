package visa

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotSnapshotDecodesLegacyKeys(t *testing.T) {
	var got []SlotSnapshot
	body := `[{"country":"USA","available":true,"waitDays":3,"slotCount":2},
		{"country":"China","available":false,"waitTime":12,"slots":4},
		{"country":"Canada","waitDays":-4,"slotCount":-1}]`
	require.NoError(t, json.Unmarshal([]byte(body), &got))

	assert.Equal(t, []SlotSnapshot{
		{Country: "USA", Available: true, WaitDays: 3, SlotCount: 2},
		{Country: "China", WaitDays: 12, SlotCount: 4},
		{Country: "Canada"},
	}, got)
}

func TestParseCountries(t *testing.T) {
	assert.Equal(t, []CountryCode{"USA", "Canada", "China"}, ParseCountries(" USA, Canada,,China "))
	assert.Equal(t, "USA,Canada", JoinCountries([]CountryCode{"USA", "Canada"}))
	assert.Nil(t, ParseCountries(""))
}

func TestBookingRequestKey(t *testing.T) {
	assert.Equal(t, "book-USA", BookingRequest{Country: "USA"}.Key())
	assert.Equal(t, "hero-cta", BookingRequest{Country: "USA", ControlID: "hero-cta"}.Key())
}
