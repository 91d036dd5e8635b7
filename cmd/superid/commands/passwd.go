package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/domain"
	"superid/internal/vault"
)

func passwdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the master password and re-encrypt the vault",
		Long: "Change the master password. Stored records are read under the current " +
			"key and re-encrypted under the new one, then sent along with the new key " +
			"material. The server swaps them in for the old records, so a failed " +
			"change leaves the vault as it was.",
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := readPassword(cmd, "Current master password")
			if err != nil {
				return err
			}
			defer wipe(current)

			next, err := readNewPassword(cmd, "New master password")
			if err != nil {
				return err
			}
			defer wipe(next)

			ctx, cancel := commandContext(cmd, 2*time.Minute)
			defer cancel()

			oldSession, err := app.unlock(ctx, current)
			if err != nil {
				return err
			}

			km, err := vault.NewKeyMaterial()
			if err != nil {
				return err
			}
			newSession, err := vault.Unlock(oldSession.UserID(), next, km)
			if err != nil {
				return err
			}

			req := domain.ChangeMasterPasswordRequest{
				CurrentPassword: string(current),
				NewPassword:     string(next),
				KeyMaterial:     km,
			}

			moved, err := app.Vault.Rekey(ctx, oldSession, newSession, func(ctx context.Context, docs []domain.CredentialDocument) error {
				req.Credentials = make([]domain.SaveCredentialRequest, 0, len(docs))
				for _, doc := range docs {
					req.Credentials = append(req.Credentials, doc.SaveRequest())
				}
				_, err := app.Client.ChangeMasterPassword(ctx, req)
				return err
			})
			if err != nil {
				newSession.Close()
				return userError(err)
			}

			// The old key can no longer read anything the server holds.
			app.Holder.Set(newSession)

			fmt.Fprintf(cmd.OutOrStdout(), "Master password changed, %d credential(s) re-encrypted\n", moved)
			return nil
		},
	}
}
