package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/visaslot/internal/application/payment"
	"github.com/example/visaslot/internal/domain/visa"
)

const testSecret = "shh"

func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func orderServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != testSecret {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"description":"Authentication failed"}}`))
			return
		}
		var body struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Receipt  string `json:"receipt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(Order{ID: "order_" + body.Receipt, Amount: body.Amount, Currency: body.Currency, Receipt: body.Receipt, Status: "created"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCreateOrder(t *testing.T) {
	srv := orderServer(t)
	o, err := NewClient(srv.URL, "rzp_test_key", testSecret).CreateOrder(context.Background(), 9900, "INR", "req-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "order_req-1", o.ID)
	assert.Equal(t, int64(9900), o.Amount)

	_, err = NewClient(srv.URL, "rzp_test_key", "wrong").CreateOrder(context.Background(), 9900, "INR", "req-1", nil)
	assert.ErrorContains(t, err, "Authentication failed")

	_, err = NewClient(srv.URL, "", "").CreateOrder(context.Background(), 9900, "INR", "req-1", nil)
	assert.ErrorContains(t, err, "not configured")
}

func waitSession(t *testing.T, c *Checkout, ref string) payment.Checkout {
	t.Helper()
	var co payment.Checkout
	require.Eventually(t, func() bool {
		var ok bool
		co, ok = c.Session(ref)
		return ok
	}, time.Second, 5*time.Millisecond)
	return co
}

func newGateway(c *Checkout) *payment.Gateway {
	return payment.NewGateway(c, payment.Merchant{Key: "rzp_test_key", Name: "VisaLive Secure"}, 5*time.Second, zerolog.Nop())
}

func TestCheckoutSuccessRoundTrip(t *testing.T) {
	c := NewCheckout(NewClient(orderServer(t).URL, "rzp_test_key", testSecret), testSecret, zerolog.Nop())
	gw := newGateway(c)

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := gw.Initiate(context.Background(), payment.Charge{Reference: "req-1", Country: "USA", AmountMinor: 9900, Currency: "INR"})
		done <- result{id, err}
	}()

	co := waitSession(t, c, "req-1")
	assert.Equal(t, "order_req-1", co.OrderID)
	assert.Equal(t, "USA Visa Slot Booking", co.Description)

	_, err := c.Succeed(co.OrderID, "pay_1", "deadbeef")
	assert.ErrorIs(t, err, ErrBadSignature)

	ref, err := c.Succeed(co.OrderID, "pay_1", sign(co.OrderID, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, "req-1", ref)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "pay_1", r.id)

	_, ok := c.Session("req-1")
	assert.False(t, ok, "session released after settlement")
}

func TestCheckoutFailAndDismiss(t *testing.T) {
	c := NewCheckout(NewClient(orderServer(t).URL, "rzp_test_key", testSecret), testSecret, zerolog.Nop())
	gw := newGateway(c)

	errs := make(chan error, 2)
	go func() {
		_, err := gw.Initiate(context.Background(), payment.Charge{Reference: "req-f", Country: "USA", AmountMinor: 9900, Currency: "INR"})
		errs <- err
	}()
	co := waitSession(t, c, "req-f")
	ref, ok := c.Reference(co.OrderID)
	require.True(t, ok)
	assert.Equal(t, "req-f", ref)
	_, err := c.Fail(co.OrderID, "")
	require.NoError(t, err)
	assert.ErrorIs(t, <-errs, visa.ErrPaymentFailed)

	go func() {
		_, err := gw.Initiate(context.Background(), payment.Charge{Reference: "req-d", Country: "China", AmountMinor: 9900, Currency: "INR"})
		errs <- err
	}()
	waitSession(t, c, "req-d")
	require.NoError(t, c.Dismiss("req-d", ""))
	assert.ErrorIs(t, <-errs, visa.ErrPaymentCancelled)
}

func TestCheckoutUnknownSession(t *testing.T) {
	c := NewCheckout(nil, testSecret, zerolog.Nop())
	_, err := c.Succeed("order_x", "pay_x", sign("order_x", "pay_x"))
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = c.Fail("order_x", "declined")
	assert.ErrorIs(t, err, ErrUnknownSession)
	assert.ErrorIs(t, c.Dismiss("req-x", ""), ErrUnknownSession)
	_, ok := c.Reference("order_x")
	assert.False(t, ok)
}

func TestVerify(t *testing.T) {
	c := NewCheckout(nil, testSecret, zerolog.Nop())
	assert.True(t, c.Verify("order_1", "pay_1", sign("order_1", "pay_1")))
	assert.False(t, c.Verify("order_1", "pay_2", sign("order_1", "pay_1")))
	assert.False(t, c.Verify("order_1", "pay_1", "not-hex"))
}

type recordingLedger struct {
	mu  sync.Mutex
	got []*visa.PartialFailureError
}

func (l *recordingLedger) RecordPartialFailure(_ context.Context, pf *visa.PartialFailureError) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, pf)
	return nil
}

func TestCaptureAfterTimeoutIsReconciled(t *testing.T) {
	c := NewCheckout(NewClient(orderServer(t).URL, "rzp_test_key", testSecret), testSecret, zerolog.Nop())
	ledger := &recordingLedger{}
	c.SetLedger(ledger)
	gw := payment.NewGateway(c, payment.Merchant{Key: "rzp_test_key"}, 30*time.Millisecond, zerolog.Nop())

	_, err := gw.Initiate(context.Background(), payment.Charge{Reference: "req-t", Country: "USA", AmountMinor: 9900, Currency: "INR"})
	require.ErrorIs(t, err, visa.ErrPaymentTimedOut)
	_, ok := c.Session("req-t")
	require.False(t, ok)

	_, err = c.Succeed("order_req-t", "pay_late", "deadbeef")
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.Empty(t, ledger.got)

	ref, err := c.Succeed("order_req-t", "pay_late", sign("order_req-t", "pay_late"))
	assert.ErrorIs(t, err, visa.ErrLateCapture)
	assert.Equal(t, "req-t", ref)

	require.Len(t, ledger.got, 1)
	pf := ledger.got[0]
	assert.Equal(t, "req-t", pf.RequestID)
	assert.Equal(t, visa.CountryCode("USA"), pf.Country)
	assert.Equal(t, "pay_late", pf.PaymentID)
	assert.ErrorIs(t, pf, visa.ErrLateCapture)
}

func TestCaptureLosingToDismissIsReconciled(t *testing.T) {
	c := NewCheckout(NewClient(orderServer(t).URL, "rzp_test_key", testSecret), testSecret, zerolog.Nop())
	ledger := &recordingLedger{}
	c.SetLedger(ledger)

	_, err := c.Open(context.Background(), payment.Checkout{Reference: "req-r", Country: "Canada", AmountMinor: 9900, Currency: "INR"}, payment.Callbacks{
		OnSuccess: func(string) bool { return false },
	})
	require.NoError(t, err)

	_, err = c.Succeed("order_req-r", "pay_r", sign("order_req-r", "pay_r"))
	assert.ErrorIs(t, err, visa.ErrLateCapture)
	require.Len(t, ledger.got, 1)
	assert.Equal(t, visa.CountryCode("Canada"), ledger.got[0].Country)
}

func TestSettledOrdersExpire(t *testing.T) {
	c := NewCheckout(NewClient(orderServer(t).URL, "rzp_test_key", testSecret), testSecret, zerolog.Nop())
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	closeFn, err := c.Open(context.Background(), payment.Checkout{Reference: "req-e", AmountMinor: 9900, Currency: "INR"}, payment.Callbacks{})
	require.NoError(t, err)
	closeFn()

	now = now.Add(SettledGrace + time.Minute)
	_, err = c.Succeed("order_req-e", "pay_e", sign("order_req-e", "pay_e"))
	assert.ErrorIs(t, err, ErrUnknownSession)
}
