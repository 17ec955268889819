package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixtures.yaml>",
		Short: "Load players, matches, reservations and tickets into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			f, err := seedStore(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "seeded %d players, %d matches, %d reservations, %d tickets\n",
				len(f.Players), len(f.Matches), len(f.Reservations), len(f.Tickets))
			for _, t := range f.Tickets {
				fmt.Fprintf(out, "  reservation %d: %s\n", t.ReservationID, t.Code)
			}
			return nil
		},
	}
}
