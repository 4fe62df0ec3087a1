package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/visaslot/internal/internaltypes"
)

const (
	tokenName   = "visaslot_booking"
	tokenHeader = "X-Booking-Token"
)

var errBadToken = fmt.Errorf("%w: invalid booking token", internaltypes.ErrUnauthorized)

// Tokens signs and encrypts booking ids so only the browser that started a
// booking can drive its checkout.
type Tokens struct{ sc *securecookie.SecureCookie }

func NewTokens(hashKey, blockKey []byte, ttl time.Duration) *Tokens {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(ttl.Seconds()))
	return &Tokens{sc: sc}
}

func (t *Tokens) Issue(requestID string) (string, error) {
	return t.sc.Encode(tokenName, map[string]string{"rid": requestID})
}

// Verify reports whether token was issued for requestID.
func (t *Tokens) Verify(token, requestID string) error {
	val := map[string]string{}
	if err := t.sc.Decode(tokenName, token, &val); err != nil {
		return errBadToken
	}
	if val["rid"] == "" || val["rid"] != requestID {
		return errBadToken
	}
	return nil
}

func (t *Tokens) fromRequest(r *http.Request, requestID string) error {
	return t.Verify(r.Header.Get(tokenHeader), requestID)
}
