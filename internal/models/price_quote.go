package models

import (
	"fmt"
	"strings"
	"time"
)

// Finish is the physical treatment of a printing
type Finish string

const (
	FinishNonfoil Finish = "nonfoil"
	FinishFoil    Finish = "foil"
	FinishEtched  Finish = "etched"
	FinishGilded  Finish = "gilded"
)

// AllFinishes returns every supported finish
func AllFinishes() []Finish {
	return []Finish{FinishNonfoil, FinishFoil, FinishEtched, FinishGilded}
}

// NormalizeFinish maps loose finish strings onto a Finish.
// Empty and unknown values are treated as nonfoil.
func NormalizeFinish(finish string) Finish {
	switch strings.ToLower(strings.TrimSpace(finish)) {
	case "foil":
		return FinishFoil
	case "etched":
		return FinishEtched
	case "gilded":
		return FinishGilded
	default:
		return FinishNonfoil
	}
}

// PriceField names one entry of the catalog's prices map
type PriceField string

const (
	PriceFieldUSD       PriceField = "usd"
	PriceFieldUSDFoil   PriceField = "usd_foil"
	PriceFieldUSDEtched PriceField = "usd_etched"
)

// finishPriceFields is the ordered fallback chain of price fields for each finish
var finishPriceFields = map[Finish][]PriceField{
	FinishNonfoil: {PriceFieldUSD},
	FinishFoil:    {PriceFieldUSDFoil, PriceFieldUSD},
	FinishEtched:  {PriceFieldUSDEtched, PriceFieldUSDFoil, PriceFieldUSD},
	FinishGilded:  {PriceFieldUSDFoil, PriceFieldUSD},
}

// PriceFieldsFor returns the fallback chain for a finish, most specific field first
func PriceFieldsFor(finish Finish) []PriceField {
	fields, ok := finishPriceFields[finish]
	if !ok {
		fields = finishPriceFields[FinishNonfoil]
	}
	return append([]PriceField(nil), fields...)
}

// PricingRequest asks for the price of one printing in one finish
type PricingRequest struct {
	SetCode         string `json:"set_code" yaml:"set_code" binding:"required"`
	CollectorNumber string `json:"collector_number" yaml:"collector_number" binding:"required"`
	Finish          Finish `json:"finish" yaml:"finish"`
}

// Key returns the normalized identity of the request
func (r PricingRequest) Key() PriceQuoteKey {
	return NewPriceQuoteKey(r.SetCode, r.CollectorNumber, string(r.Finish))
}

// PriceQuoteKey identifies a quote: set code upper-cased, collector number lower-cased, both trimmed
type PriceQuoteKey struct {
	SetCode         string
	CollectorNumber string
	Finish          Finish
}

// NewPriceQuoteKey normalizes its inputs into a PriceQuoteKey
func NewPriceQuoteKey(setCode, collectorNumber, finish string) PriceQuoteKey {
	return PriceQuoteKey{
		SetCode:         strings.ToUpper(strings.TrimSpace(setCode)),
		CollectorNumber: strings.ToLower(strings.TrimSpace(collectorNumber)),
		Finish:          NormalizeFinish(finish),
	}
}

func (k PriceQuoteKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.SetCode, k.CollectorNumber, k.Finish)
}

// MarshalText lets quote maps encode as JSON objects keyed by "SET:number:finish"
func (k PriceQuoteKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// QuoteStatus classifies the outcome of a price lookup
type QuoteStatus string

const (
	QuoteStatusPriced     QuoteStatus = "priced"
	QuoteStatusNotFound   QuoteStatus = "not_found"
	QuoteStatusNoPrice    QuoteStatus = "no_price"
	QuoteStatusFetchError QuoteStatus = "fetch_error"
	QuoteStatusCancelled  QuoteStatus = "cancelled"
)

// IsTerminal reports whether the outcome is final for the process lifetime and may be cached
func (s QuoteStatus) IsTerminal() bool {
	return s == QuoteStatusPriced || s == QuoteStatusNotFound || s == QuoteStatusNoPrice
}

// PriceQuoteResult is the resolved or failed outcome of a lookup.
// Price is nil whenever Error is set; a nil price is not necessarily a hard failure.
type PriceQuoteResult struct {
	Price      *float64    `json:"price"`
	PriceField *PriceField `json:"price_field"`
	FetchedAt  time.Time   `json:"fetched_at"`
	Name       *string     `json:"name"`
	SourceURL  string      `json:"source_url"`
	Error      string      `json:"error,omitempty"`
	Status     QuoteStatus `json:"status"`
}

// HasPrice reports whether the quote resolved to a usable price
func (r PriceQuoteResult) HasPrice() bool {
	return r.Price != nil && r.Error == ""
}
