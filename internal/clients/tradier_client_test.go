package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/optibot/pkg/retrier"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *TradierClient {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewTradierClient(srv.URL+"/v1", "token", "VA000001",
		WithRetrier(retrier.New(
			retrier.WithMaxRetries(2),
			retrier.WithInitialInterval(time.Millisecond),
			retrier.WithRetryIf(isRetryable),
		)))
}

func TestTradierClient_Timesales(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/markets/timesales", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "SPY", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1min", r.URL.Query().Get("interval"))
		assert.Equal(t, "open", r.URL.Query().Get("session_filter"))
		assert.Equal(t, "2024-01-02 09:30", r.URL.Query().Get("start"))

		io.WriteString(w, `{"series":{"data":[
			{"time":"2024-01-02T09:30:00","timestamp":1704205800,"open":470.1,"high":470.5,"low":469.9,"close":470.3,"volume":120000},
			{"time":"2024-01-02T09:31:00","timestamp":1704205860,"open":470.3,"high":470.9,"low":470.2,"close":470.8,"volume":95000}
		]}}`)
	})

	bars, err := client.Timesales(context.Background(), TimesalesRequest{
		Symbol:        "SPY",
		Interval:      "1min",
		SessionFilter: "open",
		Start:         time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(1704205860), bars[1].Timestamp)
	assert.Equal(t, 470.8, bars[1].Close)
	assert.Equal(t, 95000.0, bars[1].Volume)
}

func TestTradierClient_TimesalesSingleAndEmpty(t *testing.T) {
	responses := []string{
		`{"series":{"data":{"time":"2024-01-02T09:30:00","timestamp":1704205800,"open":1,"high":1,"low":1,"close":1,"volume":10}}}`,
		`{"series":null}`,
	}
	var call int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, responses[atomic.AddInt32(&call, 1)-1])
	})

	bars, err := client.Timesales(context.Background(), TimesalesRequest{Symbol: "SPY", Interval: "1min"})
	require.NoError(t, err)
	assert.Len(t, bars, 1)

	bars, err = client.Timesales(context.Background(), TimesalesRequest{Symbol: "SPY", Interval: "1min"})
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestTradierClient_ExpirationsAndChain(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/markets/options/expirations":
			io.WriteString(w, `{"expirations":{"date":["2024-01-02","2024-01-03"]}}`)
		case "/v1/markets/options/chains":
			assert.Equal(t, "2024-01-02", r.URL.Query().Get("expiration"))
			assert.Equal(t, "false", r.URL.Query().Get("greeks"))
			io.WriteString(w, `{"options":{"option":[
				{"symbol":"SPY240102C00470000","underlying":"SPY","option_type":"call","strike":470,"bid":1.1,"ask":1.2,"expiration_date":"2024-01-02","contract_size":100},
				{"symbol":"SPY240102P00470000","underlying":"SPY","option_type":"put","strike":470,"bid":null,"ask":null,"expiration_date":"2024-01-02","contract_size":100}
			]}}`)
		default:
			http.NotFound(w, r)
		}
	})

	dates, err := client.Expirations(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02", "2024-01-03"}, dates)

	chain, err := client.OptionChain(context.Background(), "SPY", dates[0])
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "call", chain[0].OptionType)
	assert.Equal(t, 1.2, chain[0].Ask)
	assert.Zero(t, chain[1].Ask)
}

func TestTradierClient_ExpirationsSingleDate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"expirations":{"date":"2024-01-02"}}`)
	})

	dates, err := client.Expirations(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01-02"}, dates)
}

func TestTradierClient_PlaceOptionOrder(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/accounts/VA000001/orders", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		form, err := url.ParseQuery(string(body))
		assert.NoError(t, err)
		assert.Equal(t, "option", form.Get("class"))
		assert.Equal(t, "SPY", form.Get("symbol"))
		assert.Equal(t, "SPY240102C00470000", form.Get("option_symbol"))
		assert.Equal(t, "buy_to_open", form.Get("side"))
		assert.Equal(t, "83", form.Get("quantity"))
		assert.Equal(t, "market", form.Get("type"))
		assert.Equal(t, "day", form.Get("duration"))
		assert.Equal(t, "cycle-1", form.Get("tag"))

		io.WriteString(w, `{"order":{"id":257459,"status":"ok","partner_id":"c4998eb7"}}`)
	})

	ack, err := client.PlaceOptionOrder(context.Background(), OptionOrder{
		Symbol:       "SPY",
		OptionSymbol: "SPY240102C00470000",
		Side:         "buy_to_open",
		Quantity:     83,
		Type:         "market",
		Duration:     "day",
		Tag:          "cycle-1",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(257459), ack.ID)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTradierClient_PlaceOptionOrderIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.PlaceOptionOrder(context.Background(), OptionOrder{
		Symbol: "SPY", OptionSymbol: "X", Side: "buy_to_open", Quantity: 1, Type: "market", Duration: "day",
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTradierClient_PlaceOptionOrderValidation(t *testing.T) {
	client := NewTradierClient("http://127.0.0.1:0", "token", "")
	_, err := client.PlaceOptionOrder(context.Background(), OptionOrder{Quantity: 1})
	assert.Error(t, err)

	client = NewTradierClient("http://127.0.0.1:0", "token", "VA1")
	_, err = client.PlaceOptionOrder(context.Background(), OptionOrder{Quantity: 0})
	assert.Error(t, err)
}

func TestTradierClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"profile":{"id":"id-1","name":"Test","account":{"account_number":"VA000001","option_level":2}}}`)
	})

	profile, err := client.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id-1", profile.ID)
	require.Len(t, profile.Accounts, 1)
	assert.Equal(t, 2, profile.Accounts[0].OptionLevel)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestTradierClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "Invalid Access Token")
	})

	_, err := client.Profile(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid Access Token", apiErr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestTradierClient_MalformedResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>maintenance</html>`)
	})

	_, err := client.Expirations(context.Background(), "SPY")
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestTradierClient_EmptyToken(t *testing.T) {
	client := NewTradierClient("http://127.0.0.1:0", "", "")
	_, err := client.Profile(context.Background())
	assert.Error(t, err)
}
