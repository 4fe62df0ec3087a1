package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordSlotFetch(t *testing.T) {
	before := testutil.ToFloat64(slotFetches.WithLabelValues(SourceFallback))
	RecordSlotFetch(SourceFallback)
	assert.Equal(t, before+1, testutil.ToFloat64(slotFetches.WithLabelValues(SourceFallback)))
}

func TestRecordBookingOutcome(t *testing.T) {
	before := testutil.ToFloat64(bookingOutcomes.WithLabelValues("confirmed"))
	RecordBookingOutcome("confirmed", 3)
	assert.Equal(t, before+1, testutil.ToFloat64(bookingOutcomes.WithLabelValues("confirmed")))
}

func TestObserveHTTPRequest(t *testing.T) {
	ObserveHTTPRequest("GET", "/api/slots", 200, 0.01)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(httpRequests, "visaslot_http_request_duration_seconds"), 1)
}
