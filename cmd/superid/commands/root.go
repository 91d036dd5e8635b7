package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/client"
	"superid/internal/domain"
	"superid/internal/logging"
	"superid/internal/vault"
)

const defaultServer = "http://localhost:8080"

var (
	home      string
	serverURL string
	verbose   bool
	app       *App
)

var errNotLoggedIn = errors.New("not signed in, run `superid login` first")

// App is the dependency graph shared by subcommands.
type App struct {
	Client *client.Client
	Vault  *vault.Vault
	Holder *vault.Holder
	Logger logging.Logger
	State  *State

	statePath string
}

func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "superid",
		Short:        "Password vault and QR login client",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".superid")
			}
			if err := os.MkdirAll(home, 0o700); err != nil {
				return err
			}

			statePath := filepath.Join(home, stateFile)
			state, err := LoadState(statePath)
			if err != nil {
				return err
			}

			server := serverURL
			if server == "" {
				server = os.Getenv("SUPERID_SERVER")
			}
			if server == "" {
				server = state.Server
			}
			if server == "" {
				server = defaultServer
			}
			if state.Server != server {
				// Tokens are only valid on the server that issued them.
				state.Server = server
				state.Tokens = client.Tokens{}
			}

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger := logging.New(cmd.ErrOrStderr(), level, "development")

			c := client.New(server, &http.Client{Timeout: client.DefaultTimeout})
			c.SetTokens(state.Tokens)

			app = &App{
				Client:    c,
				Vault:     vault.New(c, logger),
				Holder:    &vault.Holder{},
				Logger:    logger,
				State:     state,
				statePath: statePath,
			}

			c.OnRefresh(func(t client.Tokens) {
				app.State.Tokens = t
				if err := app.save(); err != nil {
					logger.Warn(cmd.Context(), "failed to save refreshed tokens", "error", err)
				}
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Holder.Clear()
			}
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.superid)")
	root.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "server base URL (default $SUPERID_SERVER or "+defaultServer+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	root.AddCommand(
		registerCmd(),
		loginCmd(),
		logoutCmd(),
		addCmd(),
		listCmd(),
		editCmd(),
		deleteCmd(),
		passwdCmd(),
		scanCmd(),
		partnerLoginCmd(),
	)
	return root
}

func (a *App) save() error {
	return SaveState(a.statePath, a.State)
}

func (a *App) remember(email string, resp *domain.LoginResponse) error {
	a.State.Email = email
	if resp.User != nil {
		a.State.UserID = resp.User.ID
	}
	a.State.Tokens = client.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	return a.save()
}

// unlock signs in with the master password, which also proves it before any
// record is touched, and opens a vault session with the returned key material.
func (a *App) unlock(ctx context.Context, password []byte) (*vault.Session, error) {
	if a.State.Email == "" {
		return nil, errNotLoggedIn
	}

	resp, err := a.Client.Login(ctx, a.State.Email, string(password))
	if errors.Is(err, client.ErrUnauthorized) {
		return nil, errors.New(vault.GenericCryptoMessage)
	}
	if err != nil {
		return nil, err
	}
	if err := a.remember(a.State.Email, resp); err != nil {
		return nil, err
	}

	s, err := vault.Unlock(a.State.UserID, password, resp.KeyMaterial)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}
	a.Holder.Set(s)
	return s, nil
}

func (a *App) promptUnlock(cmd *cobra.Command) (*vault.Session, error) {
	password, err := readPassword(cmd, "Master password")
	if err != nil {
		return nil, err
	}
	defer wipe(password)
	return a.unlock(cmd.Context(), password)
}

func commandContext(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, timeout)
}
