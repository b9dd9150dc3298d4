// Package cart is the client side of the cart service. The order service
// only ever reads a user's cart and clears it after checkout; cart contents
// live entirely in the cart service.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/orderingsystem/order-service/internal/config"
)

var ErrCartUnavailable = errors.New("cart service unavailable")

type Item struct {
	MenuItemID int64           `json:"menuItemId"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	UserID      int64           `json:"userId"`
	Items       []Item          `json:"items"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// Client fetches and clears carts. Remote and fallible; callers must treat
// any error as "cart state unknown".
type Client interface {
	GetCart(ctx context.Context, userID int64) (*Cart, error)
	ClearCart(ctx context.Context, userID int64) error
}

// apiResponse is the cart service's response envelope.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type httpClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(cfg config.CartConfig) Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &httpClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	url := fmt.Sprintf("%s/api/cart/%d", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("cart: failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cart: %w: %v", ErrCartUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cart: unexpected status %d fetching cart for user %d", resp.StatusCode, userID)
	}

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("cart: failed to decode response: %w", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("cart: fetch failed for user %d: %s", userID, envelope.Message)
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return nil, nil
	}

	var cart Cart
	if err := json.Unmarshal(envelope.Data, &cart); err != nil {
		return nil, fmt.Errorf("cart: failed to decode cart payload: %w", err)
	}

	return &cart, nil
}

func (c *httpClient) ClearCart(ctx context.Context, userID int64) error {
	url := fmt.Sprintf("%s/api/cart/%d", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("cart: failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("cart: %w: %v", ErrCartUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("cart: unexpected status %d clearing cart for user %d", resp.StatusCode, userID)
	}

	return nil
}
