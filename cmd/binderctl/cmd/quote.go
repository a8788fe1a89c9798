package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codyseavey/tcg-binder/internal/models"
)

var quoteFinish string

var quoteCmd = &cobra.Command{
	Use:   "quote <set> <collector-number>",
	Short: "Quote one printing",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quotes, err := newQuoteService()
		if err != nil {
			return err
		}

		req := models.PricingRequest{
			SetCode:         args[0],
			CollectorNumber: args[1],
			Finish:          models.NormalizeFinish(quoteFinish),
		}
		result := quotes.Resolve(cmd.Context(), req)
		return renderQuotes(cmd.OutOrStdout(), map[models.PriceQuoteKey]models.PriceQuoteResult{req.Key(): result})
	},
}

func init() {
	quoteCmd.Flags().StringVarP(&quoteFinish, "finish", "f", "nonfoil", "finish: nonfoil, foil, etched or gilded")
}
