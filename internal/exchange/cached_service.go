package exchange

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"gitlab.com/yelinaung/expense-approvals/internal/logger"
)

const (
	defaultCacheTTL = 12 * time.Hour
	// sweepInterval caps how often expired pairs are purged.
	sweepInterval = 5 * time.Minute
)

var errNoUpstream = errors.New("inner exchange service is required")

type cachedRate struct {
	rate      decimal.Decimal
	rateDate  time.Time
	expiresAt time.Time
}

// CachedService memoizes rates per currency pair for a TTL. Concurrent misses
// on one pair are collapsed into a single upstream call whose rate is then
// applied to each caller's own amount.
type CachedService struct {
	inner Service
	ttl   time.Duration
	now   Clock
	log   zerolog.Logger
	group singleflight.Group

	mu        sync.RWMutex
	rates     map[string]cachedRate
	lastSweep time.Time
}

var _ Service = (*CachedService)(nil)

// CacheOption configures a CachedService.
type CacheOption func(*CachedService)

// WithClock replaces the wall clock used for expiry.
func WithClock(now Clock) CacheOption {
	return func(s *CachedService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewCachedService wraps inner. A non-positive ttl falls back to 12 hours.
func NewCachedService(inner Service, ttl time.Duration, opts ...CacheOption) *CachedService {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	s := &CachedService{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		log:   logger.WithComponent("exchange"),
		rates: make(map[string]cachedRate),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pairKey(fromCurrency, toCurrency string) string {
	return strings.ToUpper(strings.TrimSpace(fromCurrency)) + "->" + strings.ToUpper(strings.TrimSpace(toCurrency))
}

// Convert prices amount from a cached rate, fetching it on a miss.
func (s *CachedService) Convert(
	ctx context.Context,
	amount decimal.Decimal,
	fromCurrency, toCurrency string,
) (ConversionResult, error) {
	if s.inner == nil {
		return ConversionResult{}, errNoUpstream
	}

	key := pairKey(fromCurrency, toCurrency)
	if hit, ok := s.lookup(key); ok {
		return applyRate(amount, hit.rate, hit.rateDate), nil
	}

	// The fetch outlives a cancelled caller so the other waiters still get a rate.
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return s.refresh(detached, key, amount, fromCurrency, toCurrency)
	})

	select {
	case <-ctx.Done():
		return ConversionResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return ConversionResult{}, res.Err
		}
		fresh := res.Val.(cachedRate)
		return applyRate(amount, fresh.rate, fresh.rateDate), nil
	}
}

// Len reports the number of cached pairs, expired ones included.
func (s *CachedService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rates)
}

func (s *CachedService) lookup(key string) (cachedRate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hit, ok := s.rates[key]
	if !ok || !s.now().Before(hit.expiresAt) {
		return cachedRate{}, false
	}
	return hit, true
}

func (s *CachedService) refresh(
	ctx context.Context,
	key string,
	amount decimal.Decimal,
	fromCurrency, toCurrency string,
) (cachedRate, error) {
	// A caller that lost the race to the previous flight finds the rate here.
	if hit, ok := s.lookup(key); ok {
		return hit, nil
	}

	result, err := s.inner.Convert(ctx, amount, fromCurrency, toCurrency)
	if err == nil {
		err = validateConversionRate(result.Rate)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("pair", key).Msg("Exchange rate refresh failed")
		return cachedRate{}, err
	}

	// TTL starts once the upstream call has returned.
	fetchedAt := s.now()
	entry := cachedRate{rate: result.Rate, rateDate: result.RateDate, expiresAt: fetchedAt.Add(s.ttl)}

	s.mu.Lock()
	s.rates[key] = entry
	s.sweepLocked(fetchedAt)
	s.mu.Unlock()
	return entry, nil
}

func (s *CachedService) sweepLocked(now time.Time) {
	if !s.lastSweep.IsZero() && now.Sub(s.lastSweep) < min(s.ttl, sweepInterval) {
		return
	}
	for pair, entry := range s.rates {
		if !now.Before(entry.expiresAt) {
			delete(s.rates, pair)
		}
	}
	s.lastSweep = now
}

func applyRate(amount, rate decimal.Decimal, rateDate time.Time) ConversionResult {
	return ConversionResult{
		Amount:   amount.Mul(rate).Round(2),
		Rate:     rate,
		RateDate: rateDate,
	}
}
