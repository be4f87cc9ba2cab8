package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultFrankfurterURL = "https://api.frankfurter.app"
	defaultRateTimeout    = 5 * time.Second
)

var (
	errRateMissing   = errors.New("conversion rate missing in response")
	errCurrencyEmpty = errors.New("from and to currencies are required")
	errAmountInvalid = errors.New("amount must be positive")
)

// FrankfurterClient looks up daily reference rates from a Frankfurter
// compatible API.
type FrankfurterClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Service = (*FrankfurterClient)(nil)

// latestRates is the body of GET /latest.
type latestRates struct {
	Date  string                 `json:"date"`
	Rates map[string]json.Number `json:"rates"`
}

// NewFrankfurterClient builds a client for baseURL, falling back to the public
// endpoint. Requests are traced through otelhttp.
func NewFrankfurterClient(baseURL string, timeout time.Duration) *FrankfurterClient {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = defaultFrankfurterURL
	}
	if timeout <= 0 {
		timeout = defaultRateTimeout
	}
	return &FrankfurterClient{
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// Convert prices amount in toCurrency at the latest published rate.
func (c *FrankfurterClient) Convert(
	ctx context.Context,
	amount decimal.Decimal,
	fromCurrency, toCurrency string,
) (ConversionResult, error) {
	if !amount.IsPositive() {
		return ConversionResult{}, errAmountInvalid
	}
	rate, rateDate, err := c.Rate(ctx, fromCurrency, toCurrency)
	if err != nil {
		return ConversionResult{}, err
	}
	return applyRate(amount, rate, rateDate), nil
}

// Rate returns how many units of toCurrency one unit of fromCurrency buys and
// the publication date of that rate. Identical currencies short-circuit to 1.
func (c *FrankfurterClient) Rate(ctx context.Context, fromCurrency, toCurrency string) (decimal.Decimal, time.Time, error) {
	from := strings.ToUpper(strings.TrimSpace(fromCurrency))
	to := strings.ToUpper(strings.TrimSpace(toCurrency))
	switch {
	case from == "" || to == "":
		return decimal.Zero, time.Time{}, errCurrencyEmpty
	case from == to:
		return decimal.NewFromInt(1), time.Now().UTC(), nil
	}

	payload, err := c.latest(ctx, from, to)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}

	raw, ok := payload.Rates[to]
	if !ok {
		return decimal.Zero, time.Time{}, fmt.Errorf("%w: %s->%s", errRateMissing, from, to)
	}
	rate, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to parse conversion rate: %w", err)
	}
	if err := validateConversionRate(rate); err != nil {
		return decimal.Zero, time.Time{}, err
	}
	published, err := time.Parse(time.DateOnly, payload.Date)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("failed to parse conversion date: %w", err)
	}
	return rate, published, nil
}

func (c *FrankfurterClient) latest(ctx context.Context, from, to string) (*latestRates, error) {
	query := url.Values{"from": {from}, "to": {to}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversion request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request conversion rate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange API returned status %d", resp.StatusCode)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload latestRates
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode conversion response: %w", err)
	}
	return &payload, nil
}
