package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/codyseavey/tcg-binder/internal/metrics"
)

const (
	scryfallBaseURL = "https://api.scryfall.com"
	// Scryfall asks clients to stay at or below 10 requests per second
	scryfallRatePerSec = 10
)

type ScryfallService struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// NewScryfallService creates a client for baseURL; an empty baseURL uses the public API
func NewScryfallService(baseURL string) *ScryfallService {
	if baseURL == "" {
		baseURL = scryfallBaseURL
	}
	return &ScryfallService{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(scryfallRatePerSec, 1),
	}
}

// ScryfallPrinting is the subset of a Scryfall card object needed for pricing.
// Prices values are decimal strings or null.
type ScryfallPrinting struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Set             string             `json:"set"`
	CollectorNumber string             `json:"collector_number"`
	Finishes        []string           `json:"finishes"`
	Prices          map[string]*string `json:"prices"`
	ScryfallURI     string             `json:"scryfall_uri"`
}

// PrintingURL builds the exact-printing lookup URL: GET /cards/:set/:number
func (s *ScryfallService) PrintingURL(setCode, number string) string {
	// Scryfall expects path params, so we must PathEscape.
	setEscaped := url.PathEscape(strings.ToLower(strings.TrimSpace(setCode)))
	numberEscaped := url.PathEscape(strings.TrimSpace(number))
	return fmt.Sprintf("%s/cards/%s/%s", s.baseURL, setEscaped, numberEscaped)
}

// GetPrintingBySetAndNumber retrieves a specific printing by set code and collector number.
// Returns nil, nil if the card is not found (404).
func (s *ScryfallService) GetPrintingBySetAndNumber(ctx context.Context, setCode, number string) (*ScryfallPrinting, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scryfall rate limiter: %w", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.PrintingURL(setCode, number), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	metrics.ScryfallLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScryfallRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get card from scryfall: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		metrics.ScryfallRequestsTotal.WithLabelValues("not_found").Inc()
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ScryfallRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("scryfall API returned status %d", resp.StatusCode)
	}

	var printing ScryfallPrinting
	if err := json.NewDecoder(resp.Body).Decode(&printing); err != nil {
		metrics.ScryfallRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode scryfall response: %w", err)
	}

	metrics.ScryfallRequestsTotal.WithLabelValues("ok").Inc()
	return &printing, nil
}
