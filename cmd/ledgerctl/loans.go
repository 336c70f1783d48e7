package main

import (
	"fmt"
	"strings"

	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/spf13/cobra"
)

func newLoansCmd(opts *rootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter models.LoanStatus
			if status != "" {
				parsed, err := models.ParseLoanStatus(status)
				if err != nil {
					return err
				}
				filter = parsed
			}

			l, closeFn, err := openLedger(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			loans, err := l.ListLoans(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-42s %-9s %14s %14s %12s %5s\n", "LOAN", "STATUS", "PAID", "BALANCE", "EMI", "LEFT")
			fmt.Fprintln(out, strings.Repeat("─", 101))
			for _, loan := range loans {
				fmt.Fprintf(out, "%-42s %-9s %14s %14s %12s %5d\n",
					loan.ID, loan.Status,
					loan.AmountPaid.StringFixed(2),
					loan.BalanceAmount.StringFixed(2),
					loan.MonthlyEMI.StringFixed(2),
					loan.EMIsLeft)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (ACTIVE or PAID_OFF)")
	return cmd
}
