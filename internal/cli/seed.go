package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/veilmarket/internal/sqlite"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load a demo marketplace into an empty database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withBackend(func(backend *sqlite.Backend) error {
				res, err := backend.Seed(cmd.Context(), time.Now().UTC())
				if err != nil {
					return err
				}
				a.logger.Info("demo data seeded",
					"event", "seeded",
					"module", "cli",
					"skipped", res.Skipped,
					"listings", res.Listings,
				)
				return a.emit(res, func(w io.Writer) {
					if res.Skipped {
						fmt.Fprintln(w, "Database already holds data; nothing seeded")
						return
					}
					fmt.Fprintf(w, "Seeded %d organizations, %d users, %d listings\n",
						res.Organizations, res.Users, res.Listings)
					fmt.Fprintf(w, "listings: %s\n", strings.Join(res.ListingIDs, ", "))
				})
			})
		},
	}
}
