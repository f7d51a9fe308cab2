package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
)

func (a *app) cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage cards",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <serial>",
		Short: "Register a card by its NFC serial number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.provisions(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			card, err := svc.CreateCard(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "card %s added (id %d)\n", card.CardUID, card.ID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "allowances <serial>",
		Short: "List a card's allowances and whether they were used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, done, err := a.provisions(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			allowances, err := svc.Allowances(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTYPE\tUSED")
			for _, al := range allowances {
				used := "-"
				if al.UsedAt != nil {
					used = al.UsedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", al.Date, al.Type, used)
			}
			return tw.Flush()
		},
	})

	return cmd
}

func (a *app) allowanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowance",
		Short: "Manage allowances",
	}

	var req service.GrantRequest
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Grant a card one allowance per day for a meal type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, done, err := a.provisions(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			created, err := svc.Grant(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "granted %d allowance(s)\n", len(created))
			return nil
		},
	}
	grant.Flags().StringVar(&req.SerialNumber, "serial", "", "card serial number")
	grant.Flags().StringVar(&req.Date, "date", "", "first day, YYYY-MM-DD")
	grant.Flags().StringVar(&req.Type, "type", "", "meal type, e.g. lunch")
	grant.Flags().IntVar(&req.Days, "days", 1, "number of consecutive days")
	_ = grant.MarkFlagRequired("serial")
	_ = grant.MarkFlagRequired("date")
	_ = grant.MarkFlagRequired("type")

	cmd.AddCommand(grant)
	return cmd
}
