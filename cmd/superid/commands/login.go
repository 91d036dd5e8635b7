package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/client"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in and remember the session tokens",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := app.State.Email
			if len(args) == 1 {
				email = args[0]
			}

			var err error
			if email == "" {
				if email, err = readText(cmd, "Email"); err != nil {
					return err
				}
			}

			password, err := readPassword(cmd, "Master password")
			if err != nil {
				return err
			}
			defer wipe(password)

			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			resp, err := app.Client.Login(ctx, email, string(password))
			if errors.Is(err, client.ErrUnauthorized) {
				return errors.New("invalid email or password")
			}
			if err != nil {
				return err
			}

			if err := app.remember(email, resp); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", email)
			return nil
		},
	}
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, 10*time.Second)
			defer cancel()

			if err := app.Client.Logout(ctx); err != nil && !errors.Is(err, client.ErrNotSignedIn) {
				app.Logger.Warn(ctx, "server logout failed", "error", err)
			}

			app.State.Tokens = client.Tokens{}
			if err := app.save(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
