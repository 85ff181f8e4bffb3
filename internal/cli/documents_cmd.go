package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SFZPL/lead-automation-system-sub000/internal/app"
	"github.com/SFZPL/lead-automation-system-sub000/internal/domain"
)

func newKnowledgeCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "kb",
		Aliases: []string{"knowledge"},
		Short:   "Manage the AI knowledge base",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List knowledge base documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(e, func(a *app.App) error {
				docs, err := a.Knowledge.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), docs, func() {
					rows := make([][]string, len(docs))
					for i, d := range docs {
						rows[i] = []string{d.ID, d.Filename, strconv.Itoa(d.Pages), formatDate(d.UploadedAt)}
					}
					printTable(cmd.OutOrStdout(), "No documents in the knowledge base",
						[]string{"ID", "FILE", "PAGES", "UPLOADED"}, rows)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				doc, err := a.Knowledge.Upload(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), doc, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d pages)\n", doc.Filename, doc.Pages)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				doc, err := resolveKnowledge(cmd.Context(), a, args[0])
				if err != nil {
					return err
				}
				if err := a.Knowledge.Delete(cmd.Context(), doc.ID); err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), map[string]string{"deleted": doc.ID}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", doc.Filename)
				})
			})
		},
	})
	return cmd
}

func newNDACmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nda",
		Short: "Upload and analyze NDAs and contracts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List uploaded NDAs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(e, func(a *app.App) error {
				docs, err := a.NDA.Refresh(cmd.Context())
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), docs, func() {
					rows := make([][]string, len(docs))
					for i, d := range docs {
						rows[i] = []string{d.ID, d.Filename, string(d.Status), orDash(d.RiskLevel), formatDate(d.UploadedAt)}
					}
					printTable(cmd.OutOrStdout(), "No NDAs uploaded",
						[]string{"ID", "FILE", "STATUS", "RISK", "UPLOADED"}, rows)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an NDA (pdf, docx, doc or txt)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				doc, err := a.NDA.Upload(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), doc, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%s)\n", doc.Filename, doc.ID)
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "analyze <id-or-name>",
		Short: "Run the AI contract review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				doc, err := resolveNDA(cmd.Context(), a, args[0])
				if err != nil {
					return err
				}
				doc, err = a.NDA.Analyze(cmd.Context(), doc.ID)
				if err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), doc, func() {
					w := cmd.OutOrStdout()
					fmt.Fprintf(w, "%s: %s (risk: %s)\n", doc.Filename, doc.Status, orDash(doc.RiskLevel))
					if doc.Summary != "" {
						fmt.Fprintf(w, "\n%s\n", doc.Summary)
					}
					for _, f := range doc.Findings {
						fmt.Fprintf(w, "  - %s\n", f)
					}
				})
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id-or-name>",
		Short: "Delete an NDA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(e, func(a *app.App) error {
				doc, err := resolveNDA(cmd.Context(), a, args[0])
				if err != nil {
					return err
				}
				if err := a.NDA.Delete(cmd.Context(), doc.ID); err != nil {
					return err
				}
				return e.emit(cmd.OutOrStdout(), map[string]string{"deleted": doc.ID}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", doc.Filename)
				})
			})
		},
	})
	return cmd
}

// withSession opens a logged-in app for the duration of fn
func withSession(e *env, fn func(a *app.App) error) error {
	a, err := e.openSession(nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

// resolveNDA matches an exact ID first, then falls back to filename search
func resolveNDA(ctx context.Context, a *app.App, arg string) (domain.NDADocument, error) {
	docs, err := a.NDA.List(ctx)
	if err != nil {
		return domain.NDADocument{}, err
	}
	for _, d := range docs {
		if d.ID == strings.TrimSpace(arg) {
			return d, nil
		}
	}
	return a.NDA.Find(ctx, arg)
}

func resolveKnowledge(ctx context.Context, a *app.App, arg string) (domain.KnowledgeDocument, error) {
	docs, err := a.Knowledge.List(ctx)
	if err != nil {
		return domain.KnowledgeDocument{}, err
	}
	for _, d := range docs {
		if d.ID == strings.TrimSpace(arg) {
			return d, nil
		}
	}
	return a.Knowledge.Find(ctx, arg)
}
