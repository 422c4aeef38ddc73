// backend/cmd/reconcile/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	usecase "storefront/internal/application/usecase"
	recondom "storefront/internal/domain/reconciliation"
	consoleDI "storefront/internal/platform/di/console"
	shared "storefront/internal/platform/di/shared"
)

var Version = "dev"

// ledgerReader is the part of ReconciliationUsecase the CLI uses.
type ledgerReader interface {
	Get(ctx context.Context, transactionID string) (recondom.Entry, error)
	List(ctx context.Context, filter recondom.Filter, page recondom.Page) (recondom.PageResult, error)
	Export(ctx context.Context, filter recondom.Filter) (usecase.ExportResult, error)
}

// openFunc builds the reader; the returned func releases clients.
type openFunc func(ctx context.Context) (ledgerReader, func(), error)

func main() {
	rootCmd := newRootCmd(openLedger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "reconcile",
		Short:   "Inspect the capture reconciliation ledger",
		Version: Version,
		Long: `Operator tool for captured payments.

Every completed capture has exactly one ledger entry. Entries with outcome
ORDER_RECORD_FAILED were paid but have no commerce order yet and must be
recorded by hand. Store selection follows LEDGER_BACKEND (firestore|postgres).`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("output", "o", "json", "Output format (json, yaml)")

	rootCmd.AddCommand(listCmd(open))
	rootCmd.AddCommand(showCmd(open))
	rootCmd.AddCommand(exportCmd(open))

	return rootCmd
}

func openLedger(ctx context.Context) (ledgerReader, func(), error) {
	infra, err := shared.NewOperatorInfra(ctx)
	if err != nil {
		return nil, nil, err
	}
	cont, err := consoleDI.NewContainer(ctx, infra, nil)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}
	return cont.ReconciliationUC, func() { _ = infra.Close() }, nil
}

func listCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			page, _ := cmd.Flags().GetInt("page")

			r, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := r.List(cmd.Context(), filter, recondom.Page{Number: page, PerPage: limit})
			if err != nil {
				return err
			}
			items := res.Items
			if items == nil {
				items = []recondom.Entry{}
			}
			return render(cmd.OutOrStdout(), format, listOutput{
				Items:      items,
				TotalCount: res.TotalCount,
				Page:       res.Page,
				TotalPages: res.TotalPages,
			})
		},
	}

	cmd.Flags().Bool("pending", false, "Only ORDER_RECORD_FAILED entries")
	cmd.Flags().String("outcome", "", "Filter by outcome (ORDER_RECORDED, ORDER_RECORD_FAILED)")
	cmd.Flags().String("from", "", "Created at or after (RFC3339 or 2006-01-02)")
	cmd.Flags().String("to", "", "Created before (RFC3339 or 2006-01-02)")
	cmd.Flags().IntP("limit", "n", 50, "Entries per page")
	cmd.Flags().Int("page", 1, "Page number")

	return cmd
}

func showCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show [transactionId]",
		Short: "Show one ledger entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}

			r, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			e, err := r.Get(cmd.Context(), args[0])
			if err != nil {
				if usecase.IsNotFound(err) {
					return fmt.Errorf("no ledger entry for transaction %s", args[0])
				}
				return err
			}
			return render(cmd.OutOrStdout(), format, e)
		},
	}
}

func exportCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Snapshot matching entries (uploaded when RECONCILIATION_EXPORT_BUCKET is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := outputFormat(cmd)
			if err != nil {
				return err
			}
			filter, err := filterFromFlags(cmd)
			if err != nil {
				return err
			}

			r, closeFn, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := r.Export(cmd.Context(), filter)
			if err != nil {
				return err
			}

			summaryOnly, _ := cmd.Flags().GetBool("summary")
			if summaryOnly {
				res.Entries = nil
			}
			return render(cmd.OutOrStdout(), format, res)
		},
	}

	cmd.Flags().Bool("pending", false, "Only ORDER_RECORD_FAILED entries")
	cmd.Flags().String("outcome", "", "Filter by outcome (ORDER_RECORDED, ORDER_RECORD_FAILED)")
	cmd.Flags().String("from", "", "Created at or after (RFC3339 or 2006-01-02)")
	cmd.Flags().String("to", "", "Created before (RFC3339 or 2006-01-02)")
	cmd.Flags().Bool("summary", false, "Print only id, count and location")

	return cmd
}
