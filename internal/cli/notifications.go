package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/broker"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func newNotificationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"inbox"},
		Short:   "Read your notifications",
	}
	cmd.AddCommand(newNotificationsListCmd(a), newNotificationsReadCmd(a))
	return cmd
}

func newNotificationsListCmd(a *app) *cobra.Command {
	var unread bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				ns, err := svc.ListNotifications(cmd.Context(), userID, unread)
				if err != nil {
					return err
				}
				return a.emit(ns, func(w io.Writer) {
					rows := make([][]string, 0, len(ns))
					for _, n := range ns {
						mark := "*"
						if n.ReadAt != nil {
							mark = ""
						}
						rows = append(rows, []string{mark, n.NotificationID, string(n.Type), fmtTime(&n.CreatedAt), payloadLine(n)})
					}
					table(w, []string{"", "ID", "TYPE", "CREATED", "DETAILS"}, rows)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&unread, "unread", false, "only unread notifications")
	return cmd
}

func newNotificationsReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark a notification as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				n, err := svc.MarkNotificationRead(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				return a.emit(n, func(w io.Writer) {
					fmt.Fprintf(w, "Marked %s read at %s\n", n.NotificationID, fmtTime(n.ReadAt))
				})
			})
		},
	}
}

func payloadLine(n types.Notification) string {
	keys := make([]string, 0, len(n.Payload))
	for k := range n.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+n.Payload[k])
	}
	return strings.Join(parts, " ")
}
