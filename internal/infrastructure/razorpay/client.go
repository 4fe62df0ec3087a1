package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.razorpay.com/v1"

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Client covers the one Razorpay REST call the checkout needs: order creation.
type Client struct {
	http   *http.Client
	base   string
	keyID  string
	secret string
}

func NewClient(base, keyID, secret string) *Client {
	if strings.TrimSpace(base) == "" {
		base = defaultBaseURL
	}
	return &Client{
		http:   &http.Client{Timeout: 15 * time.Second},
		base:   strings.TrimRight(base, "/"),
		keyID:  keyID,
		secret: secret,
	}
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (Order, error) {
	if c.keyID == "" || c.secret == "" {
		return Order{}, errors.New("razorpay key id/secret not configured")
	}
	payload := map[string]any{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Order{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/orders", bytes.NewReader(b))
	if err != nil {
		return Order{}, err
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("content-type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Order{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Description string `json:"description"`
			} `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		if e.Error.Description != "" {
			return Order{}, fmt.Errorf("razorpay create order: %s (status=%d)", e.Error.Description, resp.StatusCode)
		}
		return Order{}, fmt.Errorf("razorpay create order (status=%d)", resp.StatusCode)
	}
	var o Order
	if err := json.Unmarshal(body, &o); err != nil {
		return Order{}, fmt.Errorf("razorpay parse order: %w", err)
	}
	if o.ID == "" {
		return Order{}, errors.New("razorpay create order: empty order id")
	}
	return o, nil
}
