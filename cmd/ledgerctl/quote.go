package main

import (
	"fmt"

	"github.com/mcclellann/emiledger/pkg/ledger"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newQuoteCmd() *cobra.Command {
	var principal, years, rate string

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Compute total interest, total amount and monthly EMI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(principal)
			if err != nil {
				return fmt.Errorf("invalid --principal: %w", err)
			}
			y, err := decimal.NewFromString(years)
			if err != nil {
				return fmt.Errorf("invalid --years: %w", err)
			}
			r, err := decimal.NewFromString(rate)
			if err != nil {
				return fmt.Errorf("invalid --rate: %w", err)
			}

			terms, err := ledger.ComputeTerms(p, y, r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-16s %15s\n", "Principal", p.StringFixed(2))
			fmt.Fprintf(out, "%-16s %15s\n", "Total interest", terms.TotalInterest.StringFixed(2))
			fmt.Fprintf(out, "%-16s %15s\n", "Total amount", terms.TotalAmount.StringFixed(2))
			fmt.Fprintf(out, "%-16s %15s\n", "Monthly EMI", terms.MonthlyEMI.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&principal, "principal", "", "Loan principal")
	cmd.Flags().StringVar(&years, "years", "", "Loan period in years")
	cmd.Flags().StringVar(&rate, "rate", "", "Yearly interest rate in percent")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("years")
	_ = cmd.MarkFlagRequired("rate")
	return cmd
}
