package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
)

func (a *app) eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print the newest events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			storage, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = storage.Close() }()

			events, err := service.NewEventService(storage.Repos.Events).List(cmd.Context())
			if err != nil {
				return err
			}

			for _, ev := range events {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", ev.ID, ev.CreatedAt.Format("2006-01-02 15:04:05"), ev.Message)
			}
			return nil
		},
	}
}
