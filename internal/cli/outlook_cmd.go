package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

func newOutlookCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outlook",
		Short: "Manage the Outlook mailbox connection",
	}
	cmd.AddCommand(newOutlookStatusCmd(e))
	cmd.AddCommand(newOutlookConnectCmd(e))
	cmd.AddCommand(newOutlookRevokeCmd(e))
	return cmd
}

func printAuthStatus(e *env, w io.Writer, status domain.AuthorizationStatus) error {
	return e.emit(w, status, func() {
		if status.Authorized {
			fmt.Fprintf(w, "Outlook: connected as %s\n", orDash(status.UserEmail))
			return
		}
		fmt.Fprintln(w, "Outlook: not connected")
	})
}

func newOutlookStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether Outlook is connected",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.openSession(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Outlook.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			return printAuthStatus(e, cmd.OutOrStdout(), status)
		},
	}
}

func newOutlookConnectCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Authorize Outlook in a browser window",
		Long: "Open the Microsoft consent page and wait for the authorization to complete.\n" +
			"Press Enter after closing the browser window to stop waiting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.openSession(writerNotifier{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			// The push handshake completes the flow without waiting for the
			// next status poll
			a.Start(ctx)

			out := cmd.ErrOrStderr()
			in := cmd.InOrStdin()
			a.OnWindow = func(w *adapter.BrowserWindow) {
				fmt.Fprintln(out, "Complete the sign-in in your browser, then press Enter to continue.")
				go func() {
					_, _ = bufio.NewReader(in).ReadString('\n')
					w.Close()
				}()
			}

			status, err := a.Outlook.Connect(ctx)
			switch {
			case errors.Is(err, domain.ErrPopupBlocked):
				return fmt.Errorf("could not open a browser window; set browser.command in the config: %w", err)
			case err != nil:
				return err
			}
			if !status.Authorized {
				fmt.Fprintln(out, "Authorization was not completed")
			}
			return printAuthStatus(e, cmd.OutOrStdout(), status)
		},
	}
}

func newOutlookRevokeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke",
		Short: "Disconnect Outlook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.openSession(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Outlook.Revoke(cmd.Context())
			if err != nil {
				return err
			}
			return printAuthStatus(e, cmd.OutOrStdout(), status)
		},
	}
}
