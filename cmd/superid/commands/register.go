package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/domain"
	"superid/internal/vault"
	"superid/pkg/hash"
)

func registerCmd() *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and generate its vault key material",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if email == "" {
				if email, err = readText(cmd, "Email"); err != nil {
					return err
				}
			}
			if name == "" {
				if name, err = readText(cmd, "Name"); err != nil {
					return err
				}
			}

			password, err := readNewPassword(cmd, "Master password")
			if err != nil {
				return err
			}
			defer wipe(password)

			km, err := vault.NewKeyMaterial()
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			account, err := app.Client.Register(ctx, domain.RegisterRequest{
				Email:       email,
				Name:        name,
				Password:    string(password),
				KeyMaterial: km,
			})
			if err != nil {
				return err
			}

			resp, err := app.Client.Login(ctx, account.Email, string(password))
			if err != nil {
				return err
			}
			if err := app.remember(account.Email, resp); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Registered and signed in as %s\n", account.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

// readNewPassword asks twice and enforces the minimum length.
func readNewPassword(cmd *cobra.Command, prompt string) ([]byte, error) {
	password, err := readPassword(cmd, prompt)
	if err != nil {
		return nil, err
	}
	if len(password) < hash.MinPasswordLength {
		wipe(password)
		return nil, hash.ErrPasswordTooShort
	}

	confirm, err := readPassword(cmd, "Repeat "+prompt)
	if err != nil {
		wipe(password)
		return nil, err
	}
	defer wipe(confirm)

	if string(confirm) != string(password) {
		wipe(password)
		return nil, errors.New("passwords do not match")
	}
	return password, nil
}
