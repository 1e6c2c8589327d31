package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/broker"
	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

func newListingCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Create, publish and browse listings",
	}
	cmd.AddCommand(
		newListingCreateCmd(a),
		newListingMoveCmd(a, "publish", "Publish a draft listing", (*broker.Service).PublishListing),
		newListingMoveCmd(a, "archive", "Archive a published listing", (*broker.Service).ArchiveListing),
		newListingShowCmd(a),
		newListingBrowseCmd(a),
		newListingPromoteCmd(a),
	)
	return cmd
}

func newListingCreateCmd(a *app) *cobra.Command {
	var (
		l          types.Listing
		listingTyp string
		scheme     string
		value      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft listing",
		Long: "Create a draft listing. Name an existing material identifier with\n" +
			"--identifier, or register a new one with --scheme and --value.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			l.Type = types.ListingType(listingTyp)
			return a.withService(func(svc *broker.Service, userID string) error {
				ctx := cmd.Context()
				if l.MaterialIdentifierID == "" && scheme != "" {
					m, err := svc.RegisterMaterialIdentifier(ctx, userID, types.MaterialIdentifier{
						Scheme: types.IdentifierScheme(scheme),
						Value:  value,
					})
					if err != nil {
						return err
					}
					l.MaterialIdentifierID = m.IdentifierID
				}
				created, err := svc.CreateListing(ctx, userID, l)
				if err != nil {
					return err
				}
				return a.emitListing(created)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&l.OrgID, "org", "", "owning organization id")
	f.StringVar(&listingTyp, "type", string(types.ListingSell), "SELL or BUY_REQUEST")
	f.StringVar(&l.Title, "title", "", "listing title")
	f.StringVar(&l.Description, "description", "", "listing description")
	f.StringVar(&l.Quantity, "quantity", "", "quantity on offer or wanted")
	f.StringVar(&l.Unit, "unit", "", "quantity unit")
	f.StringVar(&l.Location, "location", "", "location")
	f.StringVar(&l.MaterialIdentifierID, "identifier", "", "existing material identifier id")
	f.StringVar(&scheme, "scheme", "", "new identifier scheme (CAS, EC_NUMBER, UN_NUMBER, INTERNAL_SKU)")
	f.StringVar(&value, "value", "", "new identifier value")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("title")
	cmd.MarkFlagsMutuallyExclusive("identifier", "scheme")
	cmd.MarkFlagsRequiredTogether("scheme", "value")
	return cmd
}

type listingMove func(*broker.Service, context.Context, string, string) (types.Listing, error)

func newListingMoveCmd(a *app, use, short string, move listingMove) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <listing-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				l, err := move(svc, cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				return a.emitListing(l)
			})
		},
	}
}

func newListingShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <listing-id>",
		Short: "Show a listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Browsing does not require an identity.
			userID, _ := a.user()
			return a.withBackend(func(backend *sqlite.Backend) error {
				l, err := a.service(backend).GetListing(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				return a.emitListing(l)
			})
		},
	}
}

func newListingBrowseCmd(a *app) *cobra.Command {
	var (
		filter     types.ListingFilter
		status     string
		listingTyp string
	)
	cmd := &cobra.Command{
		Use:   "browse",
		Short: "List visible listings, promoted first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = types.ListingStatus(status)
			filter.Type = types.ListingType(listingTyp)
			userID, _ := a.user()
			return a.withBackend(func(backend *sqlite.Backend) error {
				views, err := a.service(backend).BrowseListings(cmd.Context(), userID, filter)
				if err != nil {
					return err
				}
				return a.emit(views, func(w io.Writer) {
					rows := make([][]string, 0, len(views))
					for _, v := range views {
						promoted := ""
						if v.Promoted {
							promoted = "*"
						}
						rows = append(rows, []string{promoted, v.ListingID, string(v.Type), string(v.Status), v.Title, fmtTime(v.PublishedAt)})
					}
					table(w, []string{"", "ID", "TYPE", "STATUS", "TITLE", "PUBLISHED"}, rows)
				})
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.OrgID, "org", "", "only listings of this organization")
	f.StringVar(&status, "status", string(types.ListingPublished), "status filter (empty for all)")
	f.StringVar(&listingTyp, "type", "", "type filter")
	f.IntVar(&filter.Limit, "limit", 0, "maximum rows (0 for no limit)")
	return cmd
}

func newListingPromoteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <listing-id>",
		Short: "Promote a published listing for five days",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(func(svc *broker.Service, userID string) error {
				p, err := svc.PromoteListing(cmd.Context(), userID, args[0])
				if err != nil {
					return err
				}
				return a.emit(p, func(w io.Writer) {
					fmt.Fprintf(w, "Promotion %s: listing %s until %s\n",
						p.PromotionID, p.ListingID, fmtTime(&p.ExpiresAt))
				})
			})
		},
	}
}

func (a *app) emitListing(l types.Listing) error {
	return a.emit(l, func(w io.Writer) {
		fmt.Fprintf(w, "ID:          %s\n", l.ListingID)
		fmt.Fprintf(w, "Org:         %s\n", l.OrgID)
		fmt.Fprintf(w, "Type:        %s\n", l.Type)
		fmt.Fprintf(w, "Status:      %s\n", l.Status)
		fmt.Fprintf(w, "Title:       %s\n", l.Title)
		fmt.Fprintf(w, "Description: %s\n", orDash(l.Description))
		fmt.Fprintf(w, "Quantity:    %s\n", orDash(strings.TrimSpace(l.Quantity+" "+l.Unit)))
		fmt.Fprintf(w, "Location:    %s\n", orDash(l.Location))
		fmt.Fprintf(w, "Identifier:  %s\n", l.MaterialIdentifierID)
		fmt.Fprintf(w, "Published:   %s\n", fmtTime(l.PublishedAt))
		fmt.Fprintf(w, "Created:     %s\n", fmtTime(&l.CreatedAt))
	})
}
