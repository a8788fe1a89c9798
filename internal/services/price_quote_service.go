package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/metrics"
	"github.com/codyseavey/tcg-binder/internal/models"
)

// PrintingLookup fetches one printing from the catalog. A nil printing with a nil error means not found.
type PrintingLookup interface {
	GetPrintingBySetAndNumber(ctx context.Context, setCode, number string) (*ScryfallPrinting, error)
	PrintingURL(setCode, number string) string
}

// PriceQuoteService resolves pricing requests to quotes, consulting its cache first.
// Resolve never fails: every outcome, including transport errors, is a PriceQuoteResult.
type PriceQuoteService struct {
	lookup PrintingLookup
	cache  PriceCache
	now    func() time.Time
}

// NewPriceQuoteService creates a resolver; a nil cache gets a fresh unbounded cache
func NewPriceQuoteService(lookup PrintingLookup, cache PriceCache) *PriceQuoteService {
	if cache == nil {
		cache = NewMemoryPriceCache()
	}
	return &PriceQuoteService{
		lookup: lookup,
		cache:  cache,
		now:    time.Now,
	}
}

// Cached returns the cached quote for key without touching the catalog
func (s *PriceQuoteService) Cached(key models.PriceQuoteKey) (models.PriceQuoteResult, bool) {
	return s.cache.Get(key)
}

// CacheSize returns the number of cached quotes
func (s *PriceQuoteService) CacheSize() int {
	return s.cache.Len()
}

// Resolve returns the quote for req
func (s *PriceQuoteService) Resolve(ctx context.Context, req models.PricingRequest) models.PriceQuoteResult {
	result, _ := s.resolve(ctx, req)
	return result
}

// resolve also reports whether the catalog was contacted, so callers can throttle external calls only
func (s *PriceQuoteService) resolve(ctx context.Context, req models.PricingRequest) (models.PriceQuoteResult, bool) {
	key := req.Key()
	if cached, ok := s.cache.Get(key); ok {
		metrics.PriceCacheHits.Inc()
		return cached, false
	}
	metrics.PriceCacheMisses.Inc()

	lookupURL := s.lookup.PrintingURL(key.SetCode, key.CollectorNumber)
	if ctx.Err() != nil {
		return s.record(key, s.cancelledResult(key, lookupURL)), false
	}

	printing, err := s.lookup.GetPrintingBySetAndNumber(ctx, key.SetCode, key.CollectorNumber)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return s.record(key, s.cancelledResult(key, lookupURL)), true
		}
		logging.Sugar.Warnf("Price quote: lookup for %s failed: %v", key, err)
		return s.record(key, models.PriceQuoteResult{
			FetchedAt: s.now(),
			SourceURL: lookupURL,
			Error:     fmt.Sprintf("Failed to fetch price for %s #%s: %v", key.SetCode, key.CollectorNumber, err),
			Status:    models.QuoteStatusFetchError,
		}), true
	}

	var result models.PriceQuoteResult
	if printing == nil {
		result = models.PriceQuoteResult{
			FetchedAt: s.now(),
			SourceURL: lookupURL,
			Error:     fmt.Sprintf("No card found for %s #%s", key.SetCode, key.CollectorNumber),
			Status:    models.QuoteStatusNotFound,
		}
	} else {
		result = quoteFromPrinting(key, printing, lookupURL, s.now())
	}

	s.cache.Set(key, result)
	return s.record(key, result), true
}

func (s *PriceQuoteService) cancelledResult(key models.PriceQuoteKey, lookupURL string) models.PriceQuoteResult {
	return models.PriceQuoteResult{
		FetchedAt: s.now(),
		SourceURL: lookupURL,
		Error:     fmt.Sprintf("Price lookup for %s #%s was cancelled", key.SetCode, key.CollectorNumber),
		Status:    models.QuoteStatusCancelled,
	}
}

func (s *PriceQuoteService) record(key models.PriceQuoteKey, result models.PriceQuoteResult) models.PriceQuoteResult {
	metrics.PriceQuotesTotal.WithLabelValues(string(result.Status)).Inc()
	logging.Sugar.Debugf("Price quote: %s resolved as %s", key, result.Status)
	return result
}

// quoteFromPrinting walks the finish's fallback chain and keeps the first numeric field
func quoteFromPrinting(key models.PriceQuoteKey, printing *ScryfallPrinting, lookupURL string, fetchedAt time.Time) models.PriceQuoteResult {
	result := models.PriceQuoteResult{
		FetchedAt: fetchedAt,
		SourceURL: lookupURL,
	}
	if printing.ScryfallURI != "" {
		result.SourceURL = printing.ScryfallURI
	}
	if printing.Name != "" {
		name := printing.Name
		result.Name = &name
	}

	for _, field := range models.PriceFieldsFor(key.Finish) {
		price, ok := parsePriceField(printing.Prices, field)
		if !ok {
			continue
		}
		chosen := field
		result.Price = &price
		result.PriceField = &chosen
		result.Status = models.QuoteStatusPriced
		return result
	}

	label := key.String()
	if result.Name != nil {
		label = *result.Name
	}
	result.Error = fmt.Sprintf("No %s price available for %s", key.Finish, label)
	result.Status = models.QuoteStatusNoPrice
	return result
}

// parsePriceField reads a decimal-string price and rounds it to cents
func parsePriceField(prices map[string]*string, field models.PriceField) (float64, bool) {
	raw, ok := prices[string(field)]
	if !ok || raw == nil {
		return 0, false
	}
	value, err := decimal.NewFromString(*raw)
	if err != nil {
		return 0, false
	}
	return value.Round(2).InexactFloat64(), true
}
