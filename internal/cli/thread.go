package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/broker"
	"github.com/mesh-intelligence/veilmarket/internal/paths"
	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func newThreadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thread",
		Short: "Inspect negotiation threads",
	}
	cmd.AddCommand(
		newThreadListCmd(a),
		newThreadShowCmd(a),
		newThreadExportCmd(a),
		newThreadInspectCmd(a),
	)
	return cmd
}

func newThreadListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the threads of your organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				threads, err := svc.ListThreads(cmd.Context(), userID)
				if err != nil {
					return err
				}
				return a.emit(threads, func(w io.Writer) {
					rows := make([][]string, 0, len(threads))
					for _, t := range threads {
						status := "open"
						if t.Revealed() {
							status = "accepted"
						}
						rows = append(rows, []string{t.ThreadID, t.ListingID, orDash(t.LiveOfferID), status})
					}
					table(w, []string{"ID", "LISTING", "LIVE OFFER", "STATUS"}, rows)
				})
			})
		},
	}
}

func newThreadShowCmd(a *app) *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "show <thread-id>",
		Short: "Show a thread as your organization sees it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				view, err := svc.ThreadView(cmd.Context(), userID, args[0], orgID)
				if err != nil {
					return err
				}
				return a.emit(view, func(w io.Writer) { printThreadView(w, view) })
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "viewing organization when you sit on both sides")
	return cmd
}

func printThreadView(w io.Writer, view broker.ThreadView) {
	cp := view.Counterparty
	fmt.Fprintf(w, "Thread:       %s\n", view.Thread.ThreadID)
	fmt.Fprintf(w, "Listing:      %s\n", view.Thread.ListingID)
	fmt.Fprintf(w, "Counterparty: %s (%s", cp.Handle, cp.Tier)
	if cp.Verified {
		fmt.Fprint(w, ", verified")
	}
	fmt.Fprintln(w, ")")
	if cp.Identity != nil {
		fmt.Fprintf(w, "Identity:     %s %s %s\n", cp.Identity.LegalName, orDash(cp.Identity.Website), orDash(cp.Identity.Country))
	}
	fmt.Fprintln(w)
	printLedger(w, view.Ledger)
}

func printLedger(w io.Writer, ledger []types.Offer) {
	rows := make([][]string, 0, len(ledger))
	for _, o := range ledger {
		rows = append(rows, []string{o.OfferID, o.CreatedByOrgID, string(o.State), fmt.Sprintf("%g", o.Price), orDash(o.Message), fmtTime(o.ExpiresAt)})
	}
	table(w, []string{"OFFER", "BY", "STATE", "PRICE", "MESSAGE", "EXPIRES"}, rows)
}

func newThreadExportCmd(a *app) *cobra.Command {
	var dir, orgID string
	cmd := &cobra.Command{
		Use:   "export <thread-id>",
		Short: "Write a thread as you see it to a JSONL file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				view, err := svc.ThreadView(cmd.Context(), userID, args[0], orgID)
				if err != nil {
					return err
				}
				if dir == "" {
					dir = paths.ExportDir(a.dataDir)
				}
				path, err := sqlite.WriteThreadExport(types.ThreadSnapshot{
					Thread: view.Thread,
					Live:   view.Live,
					Ledger: view.Ledger,
				}, dir)
				if err != nil {
					return err
				}
				a.logger.Info("thread exported",
					"event", "thread_exported",
					"module", "cli",
					"thread_id", args[0],
					"path", path,
				)
				return a.emit(map[string]string{"path": path}, func(w io.Writer) {
					fmt.Fprintln(w, path)
				})
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "export directory (default: <data-dir>/exports)")
	cmd.Flags().StringVar(&orgID, "org", "", "viewing organization when you sit on both sides")
	return cmd
}

func newThreadInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print a thread export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := sqlite.ReadThreadExport(args[0])
			if err != nil {
				return err
			}
			return a.emit(snap, func(w io.Writer) {
				fmt.Fprintf(w, "Thread:  %s\n", snap.Thread.ThreadID)
				fmt.Fprintf(w, "Listing: %s\n", snap.Thread.ListingID)
				fmt.Fprintf(w, "Buyer:   %s\n", snap.Thread.BuyerOrgID)
				fmt.Fprintf(w, "Seller:  %s\n", snap.Thread.SellerOrgID)
				fmt.Fprintf(w, "Version: %d\n\n", snap.Thread.Version)
				printLedger(w, snap.Ledger)
			})
		},
	}
}
