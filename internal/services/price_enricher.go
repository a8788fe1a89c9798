package services

import (
	"context"
	"time"

	"github.com/codyseavey/tcg-binder/internal/logging"
	"github.com/codyseavey/tcg-binder/internal/metrics"
	"github.com/codyseavey/tcg-binder/internal/models"
)

// DefaultEnrichDelay is the pause between distinct catalog calls within one batch
const DefaultEnrichDelay = 120 * time.Millisecond

// PriceEnricher drives a batch of pricing requests through the quote service one at a time
type PriceEnricher struct {
	quotes *PriceQuoteService
	delay  time.Duration
	wait   func(ctx context.Context, d time.Duration) error
}

// NewPriceEnricher creates an enricher; a non-positive delay uses DefaultEnrichDelay
func NewPriceEnricher(quotes *PriceQuoteService, delay time.Duration) *PriceEnricher {
	if delay <= 0 {
		delay = DefaultEnrichDelay
	}
	return &PriceEnricher{
		quotes: quotes,
		delay:  delay,
		wait:   sleepContext,
	}
}

type enrichOptions struct {
	delay time.Duration
}

type EnrichOption func(*enrichOptions)

// WithDelay overrides the inter-call delay for one batch. Zero disables throttling.
func WithDelay(d time.Duration) EnrichOption {
	return func(o *enrichOptions) {
		if d >= 0 {
			o.delay = d
		}
	}
}

// Enrich resolves every distinct request and returns the quotes keyed by identity.
// Requests are processed in order; duplicates within the batch are skipped, and the delay
// separates consecutive catalog calls only. A failing request never aborts the batch.
// Once ctx is cancelled the remaining keys are reported as cancelled without contacting the catalog.
func (e *PriceEnricher) Enrich(ctx context.Context, requests []models.PricingRequest, opts ...EnrichOption) map[models.PriceQuoteKey]models.PriceQuoteResult {
	o := enrichOptions{delay: e.delay}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	results := make(map[models.PriceQuoteKey]models.PriceQuoteResult, len(requests))
	externalCalls := 0
	throttlePending := false

	for _, req := range requests {
		key := req.Key()
		if _, done := results[key]; done {
			continue
		}

		_, cached := e.quotes.Cached(key)
		if !cached && throttlePending && o.delay > 0 {
			if err := e.wait(ctx, o.delay); err != nil {
				results[key] = e.quotes.cancelledResult(key, e.quotes.lookup.PrintingURL(key.SetCode, key.CollectorNumber))
				continue
			}
		}

		result, external := e.quotes.resolve(ctx, req)
		results[key] = result
		if external {
			externalCalls++
			throttlePending = true
			metrics.EnrichmentExternalCalls.Inc()
		}
	}

	metrics.EnrichmentBatchDuration.Observe(time.Since(start).Seconds())
	logging.Sugar.Infof("Price enricher: resolved %d quotes from %d requests (%d catalog calls) in %v",
		len(results), len(requests), externalCalls, time.Since(start).Round(time.Millisecond))
	return results
}

// VariantPricingRequests builds one request per variant, in binder order
func VariantPricingRequests(variants []models.BinderCardVariant) []models.PricingRequest {
	requests := make([]models.PricingRequest, 0, len(variants))
	for _, v := range variants {
		if v.SetCode == "" || v.CollectorNumber == "" {
			continue
		}
		requests = append(requests, v.PricingRequest())
	}
	return requests
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
