package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/visaslot/internal/config"
	xlog "github.com/example/visaslot/internal/log"
	"github.com/example/visaslot/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the slot poller, booking API and dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			xlog.Configure(xlog.Config{Level: cfg.LogLevel})
			log := xlog.WithComponent("server")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx, cfg, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			if p, ok := a.profiles.Load(ctx); ok {
				log.Info().Str("name", p.Name).Int("bookings", len(p.Bookings)).Msg("profile loaded")
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				err := a.poller.Run(gctx, cfg.Countries, a.board.Render)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
			g.Go(func() error {
				return web.Start(gctx, cfg.ListenAddr, a.http.Routes(), xlog.WithComponent("http"))
			})
			err = g.Wait()

			// Reservations after a captured payment finish even on shutdown.
			a.bookings.Wait()
			log.Info().Msg("stopped")
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup (when DATABASE_URL is set)")
	return cmd
}
