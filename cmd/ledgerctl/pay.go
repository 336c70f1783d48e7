package main

import (
	"fmt"

	"github.com/mcclellann/emiledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newPayCmd(opts *rootOptions) *cobra.Command {
	var amount, paymentType string

	cmd := &cobra.Command{
		Use:   "pay <loan-id>",
		Short: "Record a payment against a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount: %w", err)
			}
			pt, err := models.ParsePaymentType(paymentType)
			if err != nil {
				return err
			}

			l, closeFn, err := openLedger(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			receipt, err := l.RecordPayment(cmd.Context(), args[0], amt, pt)
			if err != nil {
				return err
			}

			loan := receipt.Loan
			fmt.Fprintf(cmd.OutOrStdout(), "recorded %s: paid %s, balance %s, %d EMIs left, %s\n",
				receipt.Payment.ID,
				loan.AmountPaid.StringFixed(2),
				loan.BalanceAmount.StringFixed(2),
				loan.EMIsLeft,
				loan.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "Payment amount")
	cmd.Flags().StringVar(&paymentType, "type", string(models.PaymentTypeEMI), "Payment type (EMI or LUMP_SUM)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}
