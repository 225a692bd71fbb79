package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/optibot/pkg/retrier"
)

const (
	// TradierProductionURL live brokerage API.
	TradierProductionURL = "https://api.tradier.com/v1"
	// TradierSandboxURL paper trading API with delayed data.
	TradierSandboxURL = "https://sandbox.tradier.com/v1"

	tradierTimeout    = 15 * time.Second
	tradierMaxRetries = 3

	timesalesStartLayout = "2006-01-02 15:04"
)

// ErrMalformedResponse the API answered with a body that could not be decoded.
var ErrMalformedResponse = errors.New("malformed tradier response")

// APIError non-2xx response from Tradier.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tradier API returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// isRetryable retries transport failures, throttling and server errors.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	if errors.Is(err, ErrMalformedResponse) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// TradierClient is a minimal Tradier brokerage REST client.
type TradierClient struct {
	baseURL    string
	token      string
	accountID  string
	httpClient *http.Client
	retrier    *retrier.Retrier
	l          *zap.Logger
}

// TradierOption configures TradierClient.
type TradierOption func(*TradierClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) TradierOption {
	return func(tc *TradierClient) {
		tc.httpClient = c
	}
}

// WithRetrier replaces the default retry policy.
func WithRetrier(r *retrier.Retrier) TradierOption {
	return func(tc *TradierClient) {
		tc.retrier = r
	}
}

// WithLogger logs retried requests.
func WithLogger(l *zap.Logger) TradierOption {
	return func(tc *TradierClient) {
		tc.l = l
	}
}

// NewTradierClient creates a client for baseURL (production or sandbox) using a bearer token.
func NewTradierClient(baseURL, token, accountID string, opts ...TradierOption) *TradierClient {
	c := &TradierClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		accountID:  accountID,
		httpClient: &http.Client{Timeout: tradierTimeout},
		l:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.retrier == nil {
		c.retrier = retrier.New(
			retrier.WithMaxRetries(tradierMaxRetries),
			retrier.WithInitialInterval(500*time.Millisecond),
			retrier.WithMaxInterval(5*time.Second),
			retrier.WithRetryIf(isRetryable),
			retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
				c.l.Warn("Retrying tradier request",
					zap.Int("attempt", attempt),
					zap.Duration("wait", wait),
					zap.Error(err))
			}),
		)
	}

	return c
}

// AccountID returns the brokerage account orders are placed in.
func (c *TradierClient) AccountID() string {
	return c.accountID
}

// oneOrMany decodes Tradier collections, which are a bare object when they hold one element.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}

	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}

	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*o = []T{one}
	return nil
}

// TimesalesRequest parameters of GET /markets/timesales.
type TimesalesRequest struct {
	Symbol string
	// Interval is one of 1min, 5min, 15min.
	Interval string
	// SessionFilter is "open" for regular hours or "all".
	SessionFilter string
	// Start is optional; Tradier returns the current session when it is zero.
	Start time.Time
}

// TimesalesBar one interval of time and sales data.
type TimesalesBar struct {
	Time      string  `json:"time"`
	Timestamp int64   `json:"timestamp"`
	Price     float64 `json:"price"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	VWAP      float64 `json:"vwap"`
}

type timesalesResponse struct {
	Series *struct {
		Data oneOrMany[TimesalesBar] `json:"data"`
	} `json:"series"`
}

// Timesales returns intraday bars, oldest first.
func (c *TradierClient) Timesales(ctx context.Context, req TimesalesRequest) ([]TimesalesBar, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("interval", req.Interval)
	if req.SessionFilter != "" {
		params.Set("session_filter", req.SessionFilter)
	}
	if !req.Start.IsZero() {
		params.Set("start", req.Start.Format(timesalesStartLayout))
	}

	var resp timesalesResponse
	if err := c.get(ctx, "/markets/timesales", params, &resp); err != nil {
		return nil, errors.Wrapf(err, "timesales for %s", req.Symbol)
	}
	if resp.Series == nil {
		return nil, nil
	}

	return resp.Series.Data, nil
}

type expirationsResponse struct {
	Expirations *struct {
		Date oneOrMany[string] `json:"date"`
	} `json:"expirations"`
}

// Expirations returns option expiration dates (YYYY-MM-DD) for symbol, ascending.
func (c *TradierClient) Expirations(ctx context.Context, symbol string) ([]string, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var resp expirationsResponse
	if err := c.get(ctx, "/markets/options/expirations", params, &resp); err != nil {
		return nil, errors.Wrapf(err, "expirations for %s", symbol)
	}
	if resp.Expirations == nil {
		return nil, nil
	}

	return resp.Expirations.Date, nil
}

// ChainOption one option of a chain.
type ChainOption struct {
	Symbol         string  `json:"symbol"`
	Underlying     string  `json:"underlying"`
	OptionType     string  `json:"option_type"`
	Strike         float64 `json:"strike"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Last           float64 `json:"last"`
	ExpirationDate string  `json:"expiration_date"`
	ContractSize   int     `json:"contract_size"`
	OpenInterest   int64   `json:"open_interest"`
}

type chainResponse struct {
	Options *struct {
		Option oneOrMany[ChainOption] `json:"option"`
	} `json:"options"`
}

// OptionChain returns the chain of symbol for one expiration date.
func (c *TradierClient) OptionChain(ctx context.Context, symbol, expiration string) ([]ChainOption, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("expiration", expiration)
	params.Set("greeks", "false")

	var resp chainResponse
	if err := c.get(ctx, "/markets/options/chains", params, &resp); err != nil {
		return nil, errors.Wrapf(err, "option chain for %s %s", symbol, expiration)
	}
	if resp.Options == nil {
		return nil, nil
	}

	return resp.Options.Option, nil
}

// OptionOrder single-leg option order.
type OptionOrder struct {
	// Symbol is the underlying.
	Symbol       string
	OptionSymbol string
	// Side, e.g. buy_to_open.
	Side     string
	Quantity int64
	// Type, e.g. market.
	Type     string
	Duration string
	// Tag is an optional client reference.
	Tag string
}

// OrderAck order submission acknowledgement.
type OrderAck struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	PartnerID string `json:"partner_id"`
}

type orderResponse struct {
	Order *OrderAck `json:"order"`
}

// PlaceOptionOrder submits an option order to the configured account.
func (c *TradierClient) PlaceOptionOrder(ctx context.Context, order OptionOrder) (OrderAck, error) {
	if c.accountID == "" {
		return OrderAck{}, errors.New("tradier account id is not configured")
	}
	if order.Quantity < 1 {
		return OrderAck{}, errors.Errorf("order quantity must be positive, got %d", order.Quantity)
	}

	form := url.Values{}
	form.Set("class", "option")
	form.Set("symbol", order.Symbol)
	form.Set("option_symbol", order.OptionSymbol)
	form.Set("side", order.Side)
	form.Set("quantity", strconv.FormatInt(order.Quantity, 10))
	form.Set("type", order.Type)
	form.Set("duration", order.Duration)
	if order.Tag != "" {
		form.Set("tag", order.Tag)
	}

	// orders are not retried: a timed out submission may still have been accepted
	var resp orderResponse
	path := fmt.Sprintf("/accounts/%s/orders", url.PathEscape(c.accountID))
	if err := c.send(ctx, http.MethodPost, path, nil, form, &resp); err != nil {
		return OrderAck{}, errors.Wrapf(err, "place order %s", order.OptionSymbol)
	}
	if resp.Order == nil {
		return OrderAck{}, errors.Wrap(ErrMalformedResponse, "order acknowledgement is missing")
	}
	if resp.Order.Status != "ok" {
		return *resp.Order, errors.Errorf("order %d rejected with status %q", resp.Order.ID, resp.Order.Status)
	}

	return *resp.Order, nil
}

// ProfileAccount brokerage account listed in the user profile.
type ProfileAccount struct {
	AccountNumber  string `json:"account_number"`
	Classification string `json:"classification"`
	Status         string `json:"status"`
	Type           string `json:"type"`
	OptionLevel    int    `json:"option_level"`
}

// Profile user profile.
type Profile struct {
	ID       string                    `json:"id"`
	Name     string                    `json:"name"`
	Accounts oneOrMany[ProfileAccount] `json:"account"`
}

type profileResponse struct {
	Profile *Profile `json:"profile"`
}

// Profile fetches the user profile. Used as a connectivity and credentials check.
func (c *TradierClient) Profile(ctx context.Context) (Profile, error) {
	var resp profileResponse
	if err := c.get(ctx, "/user/profile", nil, &resp); err != nil {
		return Profile{}, errors.Wrap(err, "user profile")
	}
	if resp.Profile == nil {
		return Profile{}, errors.Wrap(ErrMalformedResponse, "profile is missing")
	}

	return *resp.Profile, nil
}

func (c *TradierClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if c.token == "" {
		return errors.New("tradier access token is empty")
	}

	return c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.send(ctx, http.MethodGet, path, params, nil, out)
	})
}

func (c *TradierClient) send(ctx context.Context, method, path string, params, form url.Values, out any) error {
	if c.token == "" {
		return errors.New("tradier access token is empty")
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "decode %s: %v", path, err)
	}

	return nil
}
