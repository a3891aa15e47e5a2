// Package paystack implements gateway.Gateway over the Paystack REST API.
package paystack

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fastprodman/groupbuy/internal/config"
	"github.com/fastprodman/groupbuy/internal/gateway"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

var _ gateway.Gateway = (*Client)(nil)

const (
	initializePath = "/transaction/initialize"
	verifyPath     = "/transaction/verify/{reference}"
)

// Observer receives the duration and outcome of each gateway call.
type Observer interface {
	GatewayCall(operation, outcome string, took time.Duration)
}

type Client struct {
	http    *resty.Client
	divisor decimal.Decimal
	obs     Observer
}

func New(cfg config.PaystackConfig, obs Observer) (*Client, error) {
	if cfg.MinorUnitDivisor <= 0 {
		return nil, fmt.Errorf("minor unit divisor must be positive, got %d", cfg.MinorUnitDivisor)
	}

	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.SecretKey).
		SetHeader("Accept", "application/json").
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(retryIdempotent)

	return &Client{
		http:    rc,
		divisor: decimal.NewFromInt(cfg.MinorUnitDivisor),
		obs:     obs,
	}, nil
}

// retryIdempotent retries transport failures and 5xx/429 answers, but only
// for GET: a repeated initialize could open a second checkout.
func retryIdempotent(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
		return false
	}

	if err != nil {
		return true
	}

	return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeRequest struct {
	Email  string `json:"email"`
	Amount int64  `json:"amount"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

// Initialize opens a hosted checkout for amount (major units).
func (c *Client) Initialize(ctx context.Context, email string, amount decimal.Decimal) (gateway.Checkout, error) {
	minor, err := c.toMinor(amount)
	if err != nil {
		return gateway.Checkout{}, err
	}

	var out envelope[initializeData]

	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(initializeRequest{Email: email, Amount: minor}).
		SetResult(&out).
		SetError(&out).
		Post(initializePath)

	err = c.check("initialize", start, resp, err, out.Status, out.Message)
	if err != nil {
		return gateway.Checkout{}, err
	}

	if out.Data.AuthorizationURL == "" || out.Data.Reference == "" {
		return gateway.Checkout{}, fmt.Errorf("%w: initialize response without checkout", gateway.ErrRejected)
	}

	return gateway.Checkout{Link: out.Data.AuthorizationURL, Reference: out.Data.Reference}, nil
}

// Verify fetches the final status of reference.
func (c *Client) Verify(ctx context.Context, reference string) (gateway.Verification, error) {
	if reference == "" {
		return gateway.Verification{}, gateway.ErrReferenceNotFound
	}

	var out envelope[verifyData]

	start := time.Now()

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("reference", reference).
		SetResult(&out).
		SetError(&out).
		Get(verifyPath)

	err = c.check("verify", start, resp, err, out.Status, out.Message)
	if err != nil {
		return gateway.Verification{}, err
	}

	return gateway.Verification{
		Reference: out.Data.Reference,
		Status:    mapStatus(out.Data.Status),
		Amount:    c.ToMajor(out.Data.Amount),
		Email:     out.Data.Customer.Email,
	}, nil
}

func (c *Client) check(op string, start time.Time, resp *resty.Response, err error, ok bool, msg string) error {
	outcome := "ok"

	defer func() {
		if c.obs != nil {
			c.obs.GatewayCall(op, outcome, time.Since(start))
		}
	}()

	if err != nil {
		outcome = "transport_error"

		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", op, err)
		}

		return fmt.Errorf("%w: %s: %v", gateway.ErrUnavailable, op, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		outcome = "not_found"
		return fmt.Errorf("%w: %s", gateway.ErrReferenceNotFound, msg)
	case code >= http.StatusInternalServerError || code == http.StatusTooManyRequests:
		outcome = "unavailable"
		return fmt.Errorf("%w: %s returned %d", gateway.ErrUnavailable, op, code)
	case resp.IsError() || !ok:
		outcome = "rejected"
		return fmt.Errorf("%w: %s returned %d: %s", gateway.ErrRejected, op, code, msg)
	}

	return nil
}

// mapStatus folds Paystack's transaction states into the three the
// ledger cares about.
func mapStatus(s string) gateway.Status {
	switch s {
	case "success":
		return gateway.StatusSuccess
	case "failed", "abandoned", "reversed":
		return gateway.StatusFailed
	default:
		return gateway.StatusPending
	}
}

func (c *Client) toMinor(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("%w: %s", gateway.ErrInvalidAmount, amount)
	}

	minor := amount.Mul(c.divisor)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has sub-minor-unit precision", gateway.ErrInvalidAmount, amount)
	}

	return minor.IntPart(), nil
}

// ToMajor converts a gateway amount into major currency units.
func (c *Client) ToMajor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(c.divisor)
}
