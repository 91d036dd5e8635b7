package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/domain"
	"superid/internal/vault"
)

type draftFlags struct {
	category    string
	name        string
	login       string
	description string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.category, "category", "c", "web", "category")
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "entry name, e.g. a site")
	cmd.Flags().StringVarP(&f.login, "login", "l", "", "login or username (encrypted)")
	cmd.Flags().StringVarP(&f.description, "description", "d", "", "free text note")
}

func (f *draftFlags) draft(secret string) domain.CredentialDraft {
	return domain.CredentialDraft{
		Category:    f.category,
		Name:        f.name,
		Login:       f.login,
		Secret:      secret,
		Description: f.description,
	}
}

func addCmd() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Encrypt and store a credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.promptUnlock(cmd)
			if err != nil {
				return err
			}

			secret, err := readPassword(cmd, "Password to store")
			if err != nil {
				return err
			}
			defer wipe(secret)

			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			cred, err := app.Vault.Add(ctx, s, flags.draft(string(secret)))
			if err != nil {
				return userError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", cred.Name, cred.ID)
			return nil
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func editCmd() *cobra.Command {
	var flags draftFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Replace a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.promptUnlock(cmd)
			if err != nil {
				return err
			}

			secret, err := readPassword(cmd, "New password to store")
			if err != nil {
				return err
			}
			defer wipe(secret)

			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			cred, err := app.Vault.Update(ctx, s, args[0], flags.draft(string(secret)))
			if err != nil {
				return userError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s)\n", cred.Name, cred.ID)
			return nil
		},
	}

	flags.register(cmd)
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd, 30*time.Second)
			defer cancel()

			if err := app.Vault.Delete(ctx, args[0]); err != nil {
				return userError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// userError hides which cryptographic check failed.
func userError(err error) error {
	switch {
	case errors.Is(err, vault.ErrAuthenticationFailure),
		errors.Is(err, vault.ErrVaultCorrupted),
		errors.Is(err, vault.ErrSessionClosed),
		errors.Is(err, vault.ErrSecretRequired):
		return errors.New(vault.UserMessage(err))
	}
	return err
}
