package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/visaslot/internal/config"
	"github.com/example/visaslot/internal/db"
	"github.com/example/visaslot/internal/reconcile"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Inspect and resolve payments captured without a reserved slot",
	}
	cmd.AddCommand(newReconcileListCmd())
	cmd.AddCommand(newReconcileResolveCmd())
	return cmd
}

func openLedgerRepo(ctx context.Context) (*reconcile.Repo, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	d, err := openDB(ctx, cfg.DatabaseURL, true)
	if err != nil {
		return nil, nil, err
	}
	return reconcile.NewRepo(d), d.Close, nil
}

func newReconcileListCmd() *cobra.Command {
	var status string

	c := &cobra.Command{
		Use:   "list",
		Short: "List partial failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "all" {
				status = ""
			}
			repo, closeDB, err := openLedgerRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			entries, err := repo.List(cmd.Context(), status)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REQUEST\tCOUNTRY\tPAYMENT\tSTATUS\tCREATED\tERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.RequestID, e.Country, e.PaymentID, e.Status, e.CreatedAt.Format("2006-01-02 15:04"), e.Error)
			}
			return tw.Flush()
		},
	}

	c.Flags().StringVar(&status, "status", reconcile.StatusOpen, "open, resolved or all")
	return c
}

func newReconcileResolveCmd() *cobra.Command {
	var note string

	c := &cobra.Command{
		Use:   "resolve <request-id>",
		Short: "Mark a partial failure as handled (refunded or booked manually)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeDB, err := openLedgerRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			e, err := repo.Resolve(cmd.Context(), args[0], note)
			if db.IsNotFound(err) {
				return fmt.Errorf("no open partial failure %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved %s (payment %s)\n", e.RequestID, e.PaymentID)
			return nil
		},
	}

	c.Flags().StringVar(&note, "note", "", "what was done, e.g. refund id")
	_ = c.MarkFlagRequired("note")
	return c
}
