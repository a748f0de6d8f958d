// Package customers resolves customer ids against the customers API.
package customers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNotFound indicates the customers API answered that the customer
// does not exist. It is distinct from a transport or upstream failure:
// callers must never treat an unreachable upstream as absence.
var ErrNotFound = errors.New("customer not found")

// ErrLookupFailed indicates the lookup could not be completed (network
// failure or non-404 upstream error).
var ErrLookupFailed = errors.New("customer lookup failed")

// Customer is the record returned by the customers API.
type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Resolver resolves a customer id to a customer record.
type Resolver interface {
	Resolve(ctx context.Context, customerID int64) (*Customer, error)
}

// Client calls the customers API over HTTP with a service token.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient constructs a Client for the given base URL and service token.
func NewClient(baseURL, serviceToken string, timeout time.Duration, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(serviceToken)

	return &Client{
		http:   httpClient,
		logger: logger,
	}
}

// Resolve fetches a customer by id. The three outcomes are a customer,
// ErrNotFound, or an error wrapping ErrLookupFailed. Single attempt, no
// internal retry.
func (c *Client) Resolve(ctx context.Context, customerID int64) (*Customer, error) {
	var customer Customer

	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&customer).
		SetPathParam("id", fmt.Sprintf("%d", customerID)).
		Get("/internal/customers/{id}")
	if err != nil {
		c.logger.Warn("customer lookup transport failure",
			zap.Int64("customer_id", customerID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.IsError():
		c.logger.Warn("customer lookup upstream error",
			zap.Int64("customer_id", customerID),
			zap.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("%w: upstream status %d", ErrLookupFailed, resp.StatusCode())
	}

	return &customer, nil
}
