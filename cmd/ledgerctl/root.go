package main

import (
	"github.com/mcclellann/emiledger/pkg/ledger"
	"github.com/mcclellann/emiledger/pkg/logging"
	"github.com/mcclellann/emiledger/pkg/store"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	db       string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the EMI loan ledger",
		Long:          "Quote simple-interest loan terms and inspect or reconcile the SQLite-backed loan ledger.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(opts.logLevel, false)
		},
	}
	root.PersistentFlags().StringVar(&opts.db, "db", "emiledger.db", "SQLite database path")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level")

	root.AddCommand(
		newQuoteCmd(),
		newLoansCmd(opts),
		newPayCmd(opts),
		newReconcileCmd(opts),
	)
	return root
}

// openLedger opens the store at opts.db. The returned func closes it.
func openLedger(opts *rootOptions) (*ledger.Ledger, func(), error) {
	st, err := store.NewSQLiteStore(opts.db)
	if err != nil {
		return nil, nil, err
	}
	return ledger.NewLedger(st), func() { st.Close() }, nil
}
