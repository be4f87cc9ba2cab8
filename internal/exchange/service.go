// Package exchange converts expense amounts into a company's base currency.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var errInvalidNonPositiveRate = errors.New("conversion rate must be positive")

// ConversionResult contains converted amount details.
type ConversionResult struct {
	Amount   decimal.Decimal
	Rate     decimal.Decimal
	RateDate time.Time
}

// Service converts amounts between currencies.
type Service interface {
	Convert(ctx context.Context, amount decimal.Decimal, fromCurrency, toCurrency string) (ConversionResult, error)
}

// Clock reports the current time.
type Clock func() time.Time

func validateConversionRate(rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: got %s", errInvalidNonPositiveRate, rate)
	}
	return nil
}
