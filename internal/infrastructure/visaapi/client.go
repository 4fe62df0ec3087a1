package visaapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/visaslot/internal/domain/visa"
)

const defaultUA = "visaslot/1.0"

// Client talks to the live-slots backend.
type Client struct {
	http *http.Client
	base string
	ua   string
	log  zerolog.Logger
}

func New(base string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		http: &http.Client{Timeout: timeout},
		base: strings.TrimRight(base, "/"),
		ua:   defaultUA,
		log:  zerolog.Nop(),
	}
}

func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = log
	return c
}

// LiveSlots issues one GET carrying the whole country list.
func (c *Client) LiveSlots(ctx context.Context, countries []visa.CountryCode) ([]visa.SlotSnapshot, error) {
	u := c.base + "/live-slots?countries=" + url.QueryEscape(visa.JoinCountries(countries))
	body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("live-slots: %w", err)
	}
	var out []visa.SlotSnapshot
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("live-slots parse: %w", err)
	}
	return out, nil
}

type bookRequest struct {
	Country   visa.CountryCode `json:"country"`
	PaymentID string           `json:"paymentId"`
	Timestamp string           `json:"timestamp"`
}

type bookResponse struct {
	Country             visa.CountryCode `json:"country"`
	SlotID              string           `json:"slotId"`
	Date                string           `json:"date"`
	ConfirmationChannel string           `json:"confirmationChannel"`
}

// BookSlot reserves a slot for an already captured payment.
func (c *Client) BookSlot(ctx context.Context, country visa.CountryCode, paymentID string, at time.Time) (visa.BookingResult, error) {
	b, err := json.Marshal(bookRequest{
		Country:   country,
		PaymentID: paymentID,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return visa.BookingResult{}, err
	}
	body, err := c.do(ctx, http.MethodPost, c.base+"/book-slot", b)
	if err != nil {
		return visa.BookingResult{}, fmt.Errorf("book-slot: %w", err)
	}

	// Any 2xx means the backend holds the slot; a malformed body only loses detail.
	res := visa.BookingResult{Country: country}
	var parsed bookResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.log.Warn().Err(err).Str("payment_id", paymentID).Msg("book-slot reply not decodable; keeping reservation")
		return res, nil
	}
	res.SlotID = parsed.SlotID
	res.ConfirmationChannel = parsed.ConfirmationChannel
	if parsed.Country != "" {
		res.Country = parsed.Country
	}
	if res.SlotID == "" {
		c.log.Warn().Str("payment_id", paymentID).Msg("book-slot reply missing slotId")
	}
	if parsed.Date != "" {
		t, ok := parseDate(parsed.Date)
		if !ok {
			c.log.Warn().Str("date", parsed.Date).Str("payment_id", paymentID).Msg("book-slot reply has unparseable date")
		}
		res.Date = t
	}
	return res, nil
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04", "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte) ([]byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")
	req.Header.Set("user-agent", c.ua)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
