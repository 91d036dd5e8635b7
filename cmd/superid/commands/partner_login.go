package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"superid/internal/client"
	"superid/internal/domain"
	"superid/pkg/qrcode"
)

var errLoginExpired = errors.New("login expired before it was confirmed")

type statusPoller interface {
	GetLoginStatus(ctx context.Context, loginToken string) (*domain.LoginStatus, error)
}

func partnerLoginCmd() *cobra.Command {
	var (
		apiKey   string
		siteURL  string
		interval time.Duration
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "partner-login",
		Short: "Act as a partner page: show a login QR code and wait for it",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			issueCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			resp, err := app.Client.PerformAuth(issueCtx, apiKey, siteURL)
			cancel()
			if errors.Is(err, client.ErrForbidden) {
				return errors.New("partner is not registered for this url")
			}
			if err != nil {
				return err
			}

			art, err := qrcode.Terminal(resp.LoginToken)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, art)
			fmt.Fprintf(out, "Or confirm with: superid scan %s\n\n", resp.LoginToken)

			status, err := waitForLogin(ctx, app.Client, resp.LoginToken, interval, timeout, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Signed in, uid %s\n", status.UID)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "partner API key")
	cmd.Flags().StringVar(&siteURL, "url", "", "partner site URL")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "give up after")
	_ = cmd.MarkFlagRequired("api-key")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// waitForLogin polls until the token is confirmed, expires or timeout passes,
// printing a countdown to w. A token the server no longer knows counts as
// expired.
func waitForLogin(ctx context.Context, p statusPoller, token string, interval, timeout time.Duration, w io.Writer) (*domain.LoginStatus, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		status, err := p.GetLoginStatus(ctx, token)
		if errors.Is(err, client.ErrNotFound) {
			fmt.Fprintln(w)
			return nil, errLoginExpired
		}
		if err != nil {
			return nil, err
		}

		switch status.Status {
		case domain.LoginSuccess:
			fmt.Fprintln(w)
			return status, nil
		case domain.LoginExpired:
			fmt.Fprintln(w)
			return nil, errLoginExpired
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			fmt.Fprintln(w)
			return nil, errLoginExpired
		}
		fmt.Fprintf(w, "\rWaiting for confirmation... %2ds ", int(remaining.Round(time.Second).Seconds()))
	}
}
