package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/broker"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func newMemberCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage organization seats",
	}
	cmd.AddCommand(newMemberAddCmd(a), newMemberRemoveCmd(a), newMemberShowCmd(a))
	return cmd
}

func newMemberAddCmd(a *app) *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "add <org-id> <user-id>",
		Short: "Give a user a seat in an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seat := types.Seat{OrgID: args[0], UserID: args[1], Role: types.Role(role)}
			return a.withService(func(svc *broker.Service, userID string) error {
				if err := svc.AddMember(cmd.Context(), userID, seat); err != nil {
					return err
				}
				return a.emit(seat, func(w io.Writer) {
					fmt.Fprintf(w, "Added %s to %s as %s\n", seat.UserID, seat.OrgID, seat.Role)
				})
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(types.RoleMember), "OWNER, ADMIN, MEMBER or VIEWER")
	return cmd
}

func newMemberRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <org-id> <user-id>",
		Short: "Remove a user's seat, or leave an organization",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				if err := svc.RemoveMember(cmd.Context(), userID, args[0], args[1]); err != nil {
					return err
				}
				return a.emit(map[string]string{"org_id": args[0], "user_id": args[1]}, func(w io.Writer) {
					fmt.Fprintf(w, "Removed %s from %s\n", args[1], args[0])
				})
			})
		},
	}
}

func newMemberShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a user you share an organization with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				u, err := svc.GetUser(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				return a.emit(u, func(w io.Writer) {
					fmt.Fprintf(w, "ID:    %s\n", u.UserID)
					fmt.Fprintf(w, "Name:  %s %s\n", u.FirstName, u.LastName)
					fmt.Fprintf(w, "Email: %s\n", orDash(u.Email))
					fmt.Fprintf(w, "Phone: %s\n", orDash(u.Phone))
				})
			})
		},
	}
}
