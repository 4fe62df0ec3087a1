package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/visaslot/internal/application/slots"
	"github.com/example/visaslot/internal/config"
	"github.com/example/visaslot/internal/domain/visa"
	"github.com/example/visaslot/internal/infrastructure/visaapi"
	xlog "github.com/example/visaslot/internal/log"
)

func newSlotsCmd() *cobra.Command {
	var (
		countries string
		asJSON    bool
	)

	c := &cobra.Command{
		Use:   "slots",
		Short: "Fetch slot availability once and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			xlog.Configure(xlog.Config{Level: cfg.LogLevel, Output: cmd.ErrOrStderr()})

			list := cfg.Countries
			if countries != "" {
				list = visa.ParseCountries(countries)
			}
			if len(list) == 0 {
				return fmt.Errorf("no countries given")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SlotFetchTimeout+5*time.Second)
			defer cancel()
			src := slots.NewSource(visaapi.New(cfg.APIBase, cfg.SlotFetchTimeout), xlog.WithComponent("slots"))
			snaps := src.FetchSlots(ctx, list)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snaps)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COUNTRY\tSTATUS\tWAIT\tSLOTS")
			for _, s := range snaps {
				status := "waitlist"
				if s.Available {
					status = "available"
				}
				fmt.Fprintf(tw, "%s\t%s\t%d days\t%d\n", s.Country, status, s.WaitDays, s.SlotCount)
			}
			return tw.Flush()
		},
	}

	c.Flags().StringVar(&countries, "countries", "", "comma-separated countries (default SLOT_COUNTRIES)")
	c.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return c
}
