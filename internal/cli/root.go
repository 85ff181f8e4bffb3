// Package cli implements the leadops command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/SFZPL/lead-automation-system-sub000/internal/adapter"
	"github.com/SFZPL/lead-automation-system-sub000/internal/app"
	"github.com/SFZPL/lead-automation-system-sub000/internal/backend"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

// Version is set at build time via -ldflags
var Version = "dev"

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{"error": err.Error()}
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.Status
			}
			var vErr *domain.ValidationError
			if errors.As(err, &vErr) {
				errObj["field"] = vErr.Field
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// env is the state shared by every subcommand, resolved once in
// PersistentPreRunE.
type env struct {
	output string
	server string

	cfg    *adapter.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:           "leadops",
		Short:         "Sales operations dashboard for the lead automation backend",
		Long:          "Run lead extraction and enrichment, follow up on proposals, manage NDAs and the AI knowledge base.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(e.output); err != nil {
				return err
			}
			return e.load(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDashboard(cmd, e)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&e.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&e.server, "server", "", "Backend URL (overrides config)")

	rootCmd.AddCommand(newDashboardCmd(e))
	rootCmd.AddCommand(newLoginCmd(e))
	rootCmd.AddCommand(newLogoutCmd(e))
	rootCmd.AddCommand(newOutlookCmd(e))
	rootCmd.AddCommand(newRunCmd(e))
	rootCmd.AddCommand(newKnowledgeCmd(e))
	rootCmd.AddCommand(newNDACmd(e))
	rootCmd.AddCommand(newFollowupsCmd(e))
	rootCmd.AddCommand(newAssignmentsCmd(e))
	rootCmd.AddCommand(newReportsCmd(e))
	rootCmd.AddCommand(newVersionCmd(e))

	return rootCmd
}

func (e *env) load(cmd *cobra.Command) error {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("server") {
		cfg.Server.URL = e.server
		cfg.Server.PushURL = ""
	}
	e.cfg = cfg

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)
	e.logger = logger
	return nil
}

// open wires the application. notifier may be nil.
func (e *env) open(notifier domain.Notifier) (*app.App, error) {
	if !e.cfg.IsConfigured() {
		return nil, errors.New("no backend configured: pass --server or set server.url")
	}
	return app.New(e.cfg, e.logger, notifier)
}

// openSession is open plus a login check
func (e *env) openSession(notifier domain.Notifier) (*app.App, error) {
	a, err := e.open(notifier)
	if err != nil {
		return nil, err
	}
	if !a.Session.LoggedIn() {
		_ = a.Close()
		return nil, fmt.Errorf("%w: run 'leadops login' first", domain.ErrNotAuthenticated)
	}
	return a, nil
}

func (e *env) json() bool {
	return e.output == "json"
}

// writerNotifier prints notifications as single lines
type writerNotifier struct {
	w io.Writer
}

func (n writerNotifier) Notify(note domain.Notification) {
	mark := "•"
	switch note.Kind {
	case domain.NotifySuccess:
		mark = "✓"
	case domain.NotifyError:
		mark = "✗"
	}
	if note.Message != "" {
		fmt.Fprintf(n.w, "%s %s: %s\n", mark, note.Title, note.Message)
		return
	}
	fmt.Fprintf(n.w, "%s %s\n", mark, note.Title)
}
