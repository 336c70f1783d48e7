package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Re-derive every active loan from its payment history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, closeFn, err := openLedger(opts)
			if err != nil {
				return err
			}
			defer closeFn()

			report, err := l.ReconcileAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked %d, repaired %d, failed %d\n",
				report.Checked, report.Repaired, report.Failed)
			if report.Failed > 0 {
				return fmt.Errorf("%d loans failed to reconcile", report.Failed)
			}
			return nil
		},
	}
}
