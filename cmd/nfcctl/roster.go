package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/strcr/nfc-meals/internal/scansvc/service"
	"github.com/strcr/nfc-meals/internal/scansvc/store"
	"gopkg.in/yaml.v3"
)

// roster is the YAML layout accepted by `nfcctl import`:
//
//	cards:
//	  - serial: "aa:11:bb:22"
//	    allowances:
//	      - type: lunch
//	        from: 2024-06-01
//	        days: 5
type roster struct {
	Cards []rosterCard `yaml:"cards"`
}

type rosterCard struct {
	Serial     string            `yaml:"serial"`
	Allowances []rosterAllowance `yaml:"allowances"`
}

type rosterAllowance struct {
	Type string `yaml:"type"`
	From string `yaml:"from"`
	Days int    `yaml:"days"`
}

type importResult struct {
	cardsCreated int
	cardsKnown   int
	granted      int
}

func parseRoster(r io.Reader) (*roster, error) {
	var ro roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ro); err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}
	return &ro, nil
}

// applyRoster creates missing cards and grants every listed allowance,
// skipping days that were already granted.
func applyRoster(ctx context.Context, svc *service.ProvisionService, ro *roster) (importResult, error) {
	var res importResult
	for _, c := range ro.Cards {
		_, err := svc.CreateCard(ctx, c.Serial)
		switch {
		case err == nil:
			res.cardsCreated++
		case errors.Is(err, store.ErrDuplicate):
			res.cardsKnown++
		default:
			return res, fmt.Errorf("card %q: %w", c.Serial, err)
		}

		for _, al := range c.Allowances {
			days := al.Days
			if days == 0 {
				days = 1
			}
			created, err := svc.Grant(ctx, service.GrantRequest{
				SerialNumber: c.Serial,
				Date:         al.From,
				Type:         al.Type,
				Days:         days,
			})
			if err != nil && !(days == 1 && errors.Is(err, store.ErrDuplicate)) {
				return res, fmt.Errorf("card %q %s from %s: %w", c.Serial, al.Type, al.From, err)
			}
			res.granted += len(created)
		}
	}
	return res, nil
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <roster.yaml>",
		Short: "Create cards and allowances from a YAML roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ro, err := parseRoster(f)
			if err != nil {
				return err
			}

			svc, done, err := a.provisions(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			res, err := applyRoster(cmd.Context(), svc, ro)
			fmt.Fprintf(cmd.OutOrStdout(), "cards created: %d, already known: %d, allowances granted: %d\n",
				res.cardsCreated, res.cardsKnown, res.granted)
			return err
		},
	}
}
