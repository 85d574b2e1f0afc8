package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ErrGateway covers any failure talking to the payment provider. The caller
// owns retry policy; this client never retries.
var ErrGateway = errors.New("payment: gateway error")

// SimulatedRefPrefix marks references synthesized without a live gateway, so
// a simulated order can never be mistaken for a real payment.
const SimulatedRefPrefix = "order_sim_"

const defaultBaseURL = "https://api.razorpay.com/v1"

// Order is an initiated (not yet confirmed) payment at the gateway.
type Order struct {
	Ref    string `json:"id"`
	Status string `json:"status"`
}

// Client creates payment orders against the Razorpay Orders API. With no key
// id configured it deterministically simulates success, so the purchase flow
// is exercisable in dev and tests without credentials.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	keyID      string
	keySecret  string
}

func NewClient(keyID, keySecret string) *Client {
	return &Client{
		BaseURL:   defaultBaseURL,
		keyID:     keyID,
		keySecret: keySecret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

func (c *Client) Simulated() bool { return c.keyID == "" }

// CreateOrder initiates a payment for amountPaise and returns the gateway
// reference.
func (c *Client) CreateOrder(ctx context.Context, amountPaise int64) (Order, error) {
	if c.Simulated() {
		return Order{Ref: SimulatedRefPrefix + uuid.NewString(), Status: "created"}, nil
	}

	body, err := json.Marshal(map[string]any{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  "receipt_" + uuid.NewString(),
	})
	if err != nil {
		return Order{}, fmt.Errorf("%w: encode request: %v", ErrGateway, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return Order{}, fmt.Errorf("%w: build request: %v", ErrGateway, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Order{}, fmt.Errorf("%w: status %d", ErrGateway, resp.StatusCode)
	}

	var out Order
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Order{}, fmt.Errorf("%w: decode response: %v", ErrGateway, err)
	}
	if out.Ref == "" {
		return Order{}, fmt.Errorf("%w: empty order id in response", ErrGateway)
	}
	return out, nil
}
