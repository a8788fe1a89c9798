package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codyseavey/tcg-binder/internal/models"
	"github.com/codyseavey/tcg-binder/internal/services"
)

var enrichDelay time.Duration

var enrichCmd = &cobra.Command{
	Use:   "enrich <requests.yaml>",
	Short: "Quote a list of printings with throttled catalog calls",
	Long: `Reads a YAML list of pricing requests and quotes each distinct printing once.

File format:
  - set_code: neo
    collector_number: "1"
    finish: foil
  - set_code: dmu
    collector_number: "10"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		requests, err := loadRequests(args[0])
		if err != nil {
			return err
		}

		quotes, err := newQuoteService()
		if err != nil {
			return err
		}

		delay := enrichDelay
		if delay == 0 {
			delay = cfg.Pricing.FetchDelay()
		}
		enricher := services.NewPriceEnricher(quotes, delay)
		return renderQuotes(cmd.OutOrStdout(), enricher.Enrich(cmd.Context(), requests))
	},
}

func init() {
	enrichCmd.Flags().DurationVar(&enrichDelay, "delay", 0, "pause between catalog calls (default from config)")
}

// loadRequests reads a YAML sequence of pricing requests
func loadRequests(path string) ([]models.PricingRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return parseRequests(data)
}

func parseRequests(data []byte) ([]models.PricingRequest, error) {
	var requests []models.PricingRequest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&requests); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse requests: %w", err)
	}
	for i, req := range requests {
		if req.SetCode == "" || req.CollectorNumber == "" {
			return nil, fmt.Errorf("request %d: set_code and collector_number are required", i+1)
		}
	}
	return requests, nil
}

// renderQuotes prints one row per quote sorted by key, followed by the priced total
func renderQuotes(out io.Writer, quotes map[models.PriceQuoteKey]models.PriceQuoteResult) error {
	keys := make([]models.PriceQuoteKey, 0, len(quotes))
	for k := range quotes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	table := tablewriter.NewWriter(out)
	table.Header("Printing", "Name", "Status", "Field", "Price", "Note")

	total := decimal.Zero
	for _, k := range keys {
		q := quotes[k]
		name, field, price := "-", "-", "-"
		if q.Name != nil {
			name = *q.Name
		}
		if q.PriceField != nil {
			field = string(*q.PriceField)
		}
		if q.HasPrice() {
			p := decimal.NewFromFloat(*q.Price)
			price = "$" + p.StringFixed(2)
			total = total.Add(p)
		}
		if err := table.Append(k.String(), name, string(q.Status), field, price, q.Error); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(out, "%d printings, priced total $%s\n", len(keys), total.StringFixed(2))
	return err
}
