package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
)

func newLoginCmd(e *env) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the backend",
		Long:  "Exchange email and password for a session token. The password is read from the terminal, or from stdin when piped.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			out := cmd.ErrOrStderr()

			if email == "" {
				fmt.Fprint(out, "Email: ")
				line, err := in.ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("failed to read email: %w", err)
				}
				email = strings.TrimSpace(line)
			}
			password, err := readPassword(cmd, in, out)
			if err != nil {
				return err
			}

			a, err := e.open(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), e.cfg.HTTP.Timeout)
			defer cancel()
			if err := a.Session.Login(ctx, email, password); err != nil {
				return err
			}

			// Remember an explicit --server for later runs
			if cmd.Flags().Changed("server") {
				if err := adapter.SaveServer(e.cfg.Server.URL, e.cfg.Server.PushURL); err != nil {
					e.logger.Warn("failed to save server config", "error", err)
				}
			}

			result := map[string]string{"status": "logged_in", "email": strings.TrimSpace(email), "server": e.cfg.Server.URL}
			return e.emit(cmd.OutOrStdout(), result, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s\n", e.cfg.Server.URL, strings.TrimSpace(email))
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	return cmd
}

func readPassword(cmd *cobra.Command, in *bufio.Reader, out io.Writer) (string, error) {
	if f, ok := cmd.InOrStdin().(*os.File); ok && f == os.Stdin && term.IsTerminal(int(syscall.Stdin)) {
		fmt.Fprint(out, "Password: ")
		b, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd(e *env) *cobra.Command {
	var forget bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Clear the session token and cached data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := e.open(nil)
			if err != nil {
				return err
			}
			if err := a.Session.Logout(); err != nil {
				_ = a.Close()
				return err
			}
			if err := a.Close(); err != nil {
				return err
			}
			if forget {
				if err := adapter.ClearServerConfig(); err != nil {
					return err
				}
				if err := adapter.ClearData(); err != nil {
					return err
				}
			}
			return e.emit(cmd.OutOrStdout(), map[string]string{"status": "logged_out"}, func() {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			})
		},
	}
	cmd.Flags().BoolVar(&forget, "forget", false, "Also forget the saved server and delete all local data")
	return cmd
}

func newVersionCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.emit(cmd.OutOrStdout(), map[string]string{"version": Version}, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "leadops %s\n", Version)
			})
		},
	}
}
