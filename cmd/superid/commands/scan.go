package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/client"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan [login-token]",
		Short: "Confirm a partner login with the token from its QR code",
		Long: "Confirm a partner login. Pass the token read from the QR code, or " +
			"paste it when prompted. The partner page signs in as this account.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.State.Tokens.AccessToken == "" {
				return errNotLoggedIn
			}

			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				var err error
				if token, err = readText(cmd, "Login token"); err != nil {
					return err
				}
			}
			token = strings.TrimSpace(token)

			ctx, cancel := commandContext(cmd, 15*time.Second)
			defer cancel()

			if err := app.Client.BindLoginToken(ctx, token); err != nil {
				return bindError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Login confirmed")
			return nil
		},
	}
}

func bindError(err error) error {
	switch {
	case errors.Is(err, client.ErrNotFound):
		return errors.New("login token not found, it may have been used already")
	case errors.Is(err, client.ErrGone):
		return errors.New("login token expired, ask the site for a new QR code")
	case errors.Is(err, client.ErrConflict):
		return errors.New("login token already confirmed by another account")
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, client.ErrNotSignedIn):
		return errNotLoggedIn
	}
	return err
}
