package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/geocaching/internal/auth"
)

func tokenCommand(a *app) *cobra.Command {
	var operator string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an operator token for dataset import and reset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.settings.Auth.Secret == "" {
				return errors.New("auth.secret is not configured")
			}

			token, err := auth.NewJWTManager(a.settings.Auth.Secret, a.settings.Auth.TokenTTL).Generate(operator)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&operator, "operator", "", "Name recorded in the token")
	cobra.CheckErr(cmd.MarkFlagRequired("operator"))

	return cmd
}
