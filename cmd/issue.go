package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/stadium-gate/internal/ticket"
)

func newIssueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "issue <reservation-id>",
		Short: "Generate a ticket code and secret hash for a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("reservation id must be an integer: %w", err)
			}
			t, err := ticket.Issue(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "code:        %s\nsecret_hash: %s\n", t.Code, t.SecretHash)
			return nil
		},
	}
}
