package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
	"github.com/SFZPL/lead-automation-system-sub000/internal/operation"
	"github.com/SFZPL/lead-automation-system-sub000/internal/tui/styles"
)

func newRunCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a lead operation and follow its progress",
	}
	cmd.AddCommand(newRunOperationCmd(e, "extract", domain.OperationExtractLeads,
		"Pull new leads from the CRM"))
	cmd.AddCommand(newRunOperationCmd(e, "enrich", domain.OperationEnrichLeads,
		"Enrich unenriched leads with company data"))
	cmd.AddCommand(newRunOperationCmd(e, "pipeline", domain.OperationFullPipeline,
		"Extract and then enrich"))
	return cmd
}

func newRunOperationCmd(e *env, use string, opType domain.OperationType, short string) *cobra.Command {
	var (
		detach bool
		poll   time.Duration
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + ".\n\nProgress streams until the operation finishes. Ctrl-C stops tracking; " +
			"the job keeps running on the server.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := e.openSession(writerNotifier{w: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session.EnsureFresh(ctx, time.Minute); err != nil {
				e.logger.Warn("token refresh failed", "error", err)
			}

			done := make(chan domain.Operation, 1)
			a.Tracker.OnTerminal(func(op domain.Operation) {
				select {
				case done <- op:
				default:
				}
			})
			if !detach && !e.json() {
				a.Tracker.Observe(progressPrinter(cmd.ErrOrStderr()))
			}

			started, err := a.Tracker.Start(ctx, opType)
			if err != nil {
				return err
			}
			if detach {
				return e.emit(cmd.OutOrStdout(), started, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Started %s (%s)\n", opType.Label(), started.ID)
				})
			}

			pushCtx, cancelPush := context.WithCancel(ctx)
			defer cancelPush()
			a.Start(pushCtx)

			op, err := follow(ctx, a.Tracker, done, poll, e)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Stopped tracking %s. The job keeps running on the server.\n", started.ID)
				return nil
			}
			if e.json() {
				if err := printJSON(cmd.OutOrStdout(), op); err != nil {
					return err
				}
			}
			if op.Status == domain.StatusFailed {
				return fmt.Errorf("%s failed", op.Type.Label())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false, "Start the operation and exit without following it")
	cmd.Flags().DurationVar(&poll, "poll", 5*time.Second, "Status poll interval while live updates are unavailable")
	return cmd
}

// follow waits for the tracked operation to finish, polling its status as a
// fallback for the push channel. It returns ctx's error on interrupt.
func follow(ctx context.Context, tracker *operation.Tracker, done <-chan domain.Operation, poll time.Duration, e *env) (domain.Operation, error) {
	if poll <= 0 {
		poll = 5 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case op := <-done:
			return op, nil
		case <-ctx.Done():
			tracker.Cancel()
			return domain.Operation{}, ctx.Err()
		case <-ticker.C:
			if err := tracker.Resync(ctx); err != nil {
				e.logger.Warn("operation status poll failed", "error", err)
			}
		}
	}
}

// progressPrinter prints a line whenever progress, step or errors change
func progressPrinter(w io.Writer) func(operation.Snapshot) {
	var (
		mu   sync.Mutex
		last string
	)
	return func(s operation.Snapshot) {
		if !s.Tracked {
			return
		}
		line := progressLine(s.Operation)
		mu.Lock()
		defer mu.Unlock()
		if line == last {
			return
		}
		last = line
		fmt.Fprintln(w, line)
	}
}

func progressLine(op domain.Operation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %3d%% %-9s", styles.RenderProgressBar(op.Progress, 20), op.Progress, op.Status)
	if op.TotalLeads > 0 {
		fmt.Fprintf(&b, " %d/%d leads", op.LeadsProcessed, op.TotalLeads)
	}
	if op.CurrentStep != "" {
		b.WriteString(" · " + op.CurrentStep)
	}
	if n := len(op.Errors); n > 0 {
		fmt.Fprintf(&b, " (%d errors, last: %s)", n, op.Errors[n-1])
	}
	return b.String()
}
