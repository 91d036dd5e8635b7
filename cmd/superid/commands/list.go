package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/vault"
)

const unreadable = "<unreadable>"

func listCmd() *cobra.Command {
	var show bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Decrypt and print the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.promptUnlock(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			res, err := app.Vault.List(ctx, s)
			if err != nil {
				return userError(err)
			}

			if res.Notice != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Notice)
			}
			if len(res.Credentials) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Vault is empty")
				return nil
			}

			return printCredentials(cmd.OutOrStdout(), res.Credentials, show)
		},
	}

	cmd.Flags().BoolVar(&show, "show", false, "print stored passwords in clear")
	return cmd
}

func printCredentials(w io.Writer, creds []vault.Credential, show bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tNAME\tLOGIN\tPASSWORD\tDESCRIPTION")

	for _, c := range creds {
		login := c.Login
		if c.LoginUnreadable {
			login = unreadable
		}

		secret := "********"
		switch {
		case c.SecretUnreadable:
			secret = unreadable
		case show:
			secret = c.Secret
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.Category, c.Name, login, secret, c.Description)
	}
	return tw.Flush()
}
