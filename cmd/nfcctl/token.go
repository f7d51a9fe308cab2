package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/spf13/cobra"
)

func (a *app) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin token for the scan service admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := a.v.GetString("admin_jwt_secret")
			if secret == "" {
				return errors.New("admin secret is required (--admin-jwt-secret or ADMIN_JWT_SECRET)")
			}
			ttl := a.v.GetDuration("ttl")
			if ttl <= 0 {
				return errors.New("ttl must be positive")
			}

			_, token, err := jwtauth.New("HS256", []byte(secret), nil).Encode(map[string]interface{}{
				"role": "admin",
				"exp":  time.Now().Add(ttl).Unix(),
			})
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().String("admin-jwt-secret", "", "HS256 signing secret")
	cmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = a.v.BindPFlag("admin_jwt_secret", cmd.Flags().Lookup("admin-jwt-secret"))
	_ = a.v.BindPFlag("ttl", cmd.Flags().Lookup("ttl"))

	return cmd
}
