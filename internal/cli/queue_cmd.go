package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/SFZPL/lead-automation-system-sub000/internal/app"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

func newFollowupsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "followups",
		Short: "Work the proposal follow-up queue",
	}

	var (
		daysBack int
		status   string
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List proposals awaiting a follow-up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := domain.FollowupFilter{DaysBack: daysBack, Status: domain.FollowupStatus(status)}
			return withSession(e, func(a *app.App) error {
				items, err := a.Followups.Refresh(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), items, func() {
					rows := make([][]string, len(items))
					for i, f := range items {
						rows[i] = []string{f.ID, f.LeadName, orDash(f.PartnerEmail), strconv.Itoa(f.DaysSince), string(f.Status)}
					}
					printTable(cmd.OutOrStdout(), "No follow-ups due",
						[]string{"ID", "LEAD", "CONTACT", "DAYS", "STATUS"}, rows)
				})
			})
		},
	}
	list.Flags().IntVar(&daysBack, "days-back", 0, "Only proposals sent at least this many days ago")
	list.Flags().StringVar(&status, "status", "", "Filter by status (pending, drafted, sent, completed)")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "draft <id>",
		Short: "Generate a follow-up email with AI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				draft, err := a.Followups.GenerateDraft(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), draft, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Subject: %s\n\n%s\n", draft.Subject, draft.Body)
				})
			})
		},
	})

	var subject, body string
	send := &cobra.Command{
		Use:   "send <id>",
		Short: "Send a follow-up through Outlook",
		Long:  "Send a follow-up email. Without --subject and --body an AI draft is generated and sent.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				draft := domain.Draft{FollowupID: args[0], Subject: subject, Body: body}
				if subject == "" && body == "" {
					generated, err := a.Followups.GenerateDraft(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					draft = generated
					draft.FollowupID = args[0]
				}
				if err := a.Followups.Send(cmd.Context(), draft); err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), map[string]string{"sent": args[0]}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Sent %q\n", draft.Subject)
				})
			})
		},
	}
	send.Flags().StringVar(&subject, "subject", "", "Email subject")
	send.Flags().StringVar(&body, "body", "", "Email body")
	cmd.AddCommand(send)

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <id>",
		Short: "Remove a follow-up from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				if err := a.Followups.MarkComplete(cmd.Context(), args[0]); err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), map[string]string{"completed": args[0]}, func() {
					fmt.Fprintln(cmd.OutOrStdout(), "Marked complete")
				})
			})
		},
	})
	return cmd
}

func newAssignmentsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "Hand leads to other reps",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List lead assignments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(e, func(a *app.App) error {
				items, err := a.Assignments.Refresh(cmd.Context(), domain.AssignmentStatus(status))
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), items, func() {
					rows := make([][]string, len(items))
					for i, as := range items {
						rows[i] = []string{as.ID, as.LeadName, as.AssignedBy, as.AssignedTo, string(as.Status), formatDate(as.CreatedAt)}
					}
					printTable(cmd.OutOrStdout(), "No assignments",
						[]string{"ID", "LEAD", "FROM", "TO", "STATUS", "CREATED"}, rows)
				})
			})
		},
	}
	list.Flags().StringVar(&status, "status", string(domain.AssignmentPending), "Filter by status (pending, accepted, rejected; empty for all)")
	cmd.AddCommand(list)

	var note string
	assign := &cobra.Command{
		Use:   "assign <lead-id> <user>",
		Short: "Ask another user to take over a lead",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				if err := a.Assignments.Assign(cmd.Context(), args[0], args[1], note); err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), map[string]string{"lead_id": args[0], "assigned_to": args[1]}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Assigned lead %s to %s\n", args[0], args[1])
				})
			})
		},
	}
	assign.Flags().StringVar(&note, "note", "", "Message for the assignee")
	cmd.AddCommand(assign)

	for _, accept := range []bool{true, false} {
		use, short, past := "accept <id>", "Accept an assignment", "Accepted"
		if !accept {
			use, short, past = "reject <id>", "Reject an assignment", "Rejected"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(e, func(a *app.App) error {
					if err := a.Assignments.Respond(cmd.Context(), args[0], accept); err != nil {
						return err
					}
					return e.emit(cmd.OutOrStdout(), map[string]any{"id": args[0], "accepted": accept}, func() {
						fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", past, args[0])
					})
				})
			},
		})
	}
	return cmd
}

func newReportsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Generate and export aggregate reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(e, func(a *app.App) error {
				reports, err := a.Reports.Saved(cmd.Context())
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), reports, func() {
					rows := make([][]string, len(reports))
					for i, r := range reports {
						rows[i] = []string{r.ID, r.Name, orDash(r.Period), strconv.Itoa(r.RowCount), formatDate(r.CreatedAt)}
					}
					printTable(cmd.OutOrStdout(), "No saved reports",
						[]string{"ID", "NAME", "PERIOD", "ROWS", "CREATED"}, rows)
				})
			})
		},
	})

	var from, to string
	generate := &cobra.Command{
		Use:   "generate <name>",
		Short: "Generate a report (can take minutes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				if !e.json() {
					fmt.Fprintln(cmd.ErrOrStderr(), "Generating report...")
				}
				report, err := a.Reports.Generate(cmd.Context(), domain.ReportRequest{Name: args[0], DateFrom: from, DateTo: to})
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), report, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Saved report %s (%s, %d rows)\n", report.Name, report.ID, report.RowCount)
				})
			})
		},
	}
	generate.Flags().StringVar(&from, "from", "", "Start date (YYYY-MM-DD)")
	generate.Flags().StringVar(&to, "to", "", "End date (YYYY-MM-DD)")
	cmd.AddCommand(generate)

	var format, out string
	export := &cobra.Command{
		Use:   "export <id>",
		Short: "Download a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				blob, err := a.Reports.Export(cmd.Context(), args[0], format)
				if err != nil {
					return err
				}
				path := out
				if path == "" && blob.Filename != "" {
					path = filepath.Base(blob.Filename)
				}
				if path == "" || path == "." || path == "/" {
					path = "report-" + args[0]
					if format != "" {
						path += "." + format
					}
				}
				if err := os.WriteFile(path, blob.Data, 0644); err != nil {
					return fmt.Errorf("failed to write report: %w", err)
				}
				abs, _ := filepath.Abs(path)
				return e.emit(cmd.OutOrStdout(), map[string]any{"path": abs, "bytes": len(blob.Data)}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", abs, len(blob.Data))
				})
			})
		},
	}
	export.Flags().StringVar(&format, "format", "", "Export format (csv, xlsx, pdf); server default when empty")
	export.Flags().StringVarP(&out, "out", "f", "", "Output file (default: server-suggested name)")
	cmd.AddCommand(export)

	return cmd
}
