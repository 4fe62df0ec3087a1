package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/visaslot/internal/config"
	"github.com/example/visaslot/internal/domain/user"
	"github.com/example/visaslot/internal/infrastructure/crypto"
	xlog "github.com/example/visaslot/internal/log"
	"github.com/example/visaslot/internal/profile"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the local user profile",
	}
	cmd.AddCommand(newProfileInitCmd())
	cmd.AddCommand(newProfileShowCmd())
	return cmd
}

func openProfileStore() (*profile.FileStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	var aead *crypto.AEAD
	if cfg.ProfileKey != nil {
		if aead, err = crypto.New(cfg.ProfileKey); err != nil {
			return nil, err
		}
	}
	return profile.NewFileStore(cfg.ProfilePath, aead, xlog.WithComponent("profile")), nil
}

func newProfileInitCmd() *cobra.Command {
	var name string
	var force bool

	c := &cobra.Command{
		Use:   "init",
		Short: "Create the profile (keeps existing bookings unless --force)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore()
			if err != nil {
				return err
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return fmt.Errorf("--name must not be empty")
			}

			p := user.Profile{Name: name}
			if existing, ok := store.Load(cmd.Context()); ok && !force {
				p.Bookings = existing.Bookings
			}
			if err := store.Save(cmd.Context(), p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved profile %q (%d bookings)\n", p.Name, len(p.Bookings))
			return nil
		},
	}

	c.Flags().StringVar(&name, "name", "", "display name")
	c.Flags().BoolVar(&force, "force", false, "drop existing bookings")
	_ = c.MarkFlagRequired("name")
	return c
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored profile as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openProfileStore()
			if err != nil {
				return err
			}
			p, ok := store.Load(cmd.Context())
			if !ok {
				return fmt.Errorf("no profile (run `visaslot profile init --name ...`)")
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
}
