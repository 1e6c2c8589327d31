package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// Demo directory ids written by Seed. Organization ids travel with
// threads and listings before reveal, so they carry no name.
const (
	SeedOrgAcme       = "5b0e7c2d-8f41-4a6e-9d13-2c7f05a8e9b4"
	SeedOrgBrightChem = "c93a1f60-27de-4b85-a0c4-7e16d2b94f3a"
	SeedUserAlice     = "user-alice"
	SeedUserBob       = "user-bob"
	SeedUserCarol     = "user-carol"
	SeedUserDave      = "user-dave"
)

// SeedResult reports what Seed wrote.
type SeedResult struct {
	Skipped       bool     `json:"skipped"`
	Organizations int      `json:"organizations"`
	Users         int      `json:"users"`
	Listings      int      `json:"listings"`
	ListingIDs    []string `json:"listing_ids"`
}

type seedUser struct {
	user  types.User
	orgID string
	role  types.Role
}

// Seed writes a small demo marketplace: a premium buyer, a free seller,
// four users across both, and listings on either side of the early-access
// window relative to now. It does nothing when organizations already exist.
func (b *Backend) Seed(ctx context.Context, now time.Time) (SeedResult, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return SeedResult{}, err
	}
	var existing int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations`).Scan(&existing); err != nil {
		return SeedResult{}, fmt.Errorf("count organizations: %w", err)
	}
	if existing > 0 {
		return SeedResult{Skipped: true}, nil
	}

	now = now.UTC()
	var res SeedResult

	orgs := []types.Organization{
		{
			OrgID:        SeedOrgAcme,
			Handle:       "acme-ingredients-4f2a1c",
			Tier:         types.TierPremium,
			Verification: types.VerificationVerified,
			LegalName:    "Acme Ingredients Corp",
			Website:      "https://acme-ingredients.example.com",
			Country:      "NL",
			CreatedAt:    now.Add(-30 * 24 * time.Hour),
		},
		{
			OrgID:        SeedOrgBrightChem,
			Handle:       "brightchem-9c03de",
			Tier:         types.TierFree,
			Verification: types.VerificationPending,
			LegalName:    "BrightChem GmbH",
			Website:      "https://brightchem.example.com",
			Country:      "DE",
			CreatedAt:    now.Add(-20 * 24 * time.Hour),
		},
	}
	for _, o := range orgs {
		if _, err := b.CreateOrganization(ctx, o); err != nil {
			return SeedResult{}, fmt.Errorf("seed organization %s: %w", o.OrgID, err)
		}
		res.Organizations++
	}

	users := []seedUser{
		{types.User{UserID: SeedUserAlice, Email: "alice@acme-ingredients.example.com", Phone: "+31 20 555 0101", FirstName: "Alice", LastName: "Jansen"}, SeedOrgAcme, types.RoleOwner},
		{types.User{UserID: SeedUserBob, Email: "bob@acme-ingredients.example.com", FirstName: "Bob", LastName: "de Vries"}, SeedOrgAcme, types.RoleMember},
		{types.User{UserID: SeedUserCarol, Email: "carol@brightchem.example.com", Phone: "+49 30 555 0199", FirstName: "Carol", LastName: "Schmidt"}, SeedOrgBrightChem, types.RoleOwner},
		{types.User{UserID: SeedUserDave, Email: "dave@brightchem.example.com", FirstName: "Dave", LastName: "Weber"}, SeedOrgBrightChem, types.RoleViewer},
	}
	for _, su := range users {
		su.user.CreatedAt = now.Add(-10 * 24 * time.Hour)
		if _, err := b.CreateUser(ctx, su.user); err != nil {
			return SeedResult{}, fmt.Errorf("seed user %s: %w", su.user.UserID, err)
		}
		if err := b.AddSeat(ctx, types.Seat{UserID: su.user.UserID, OrgID: su.orgID, Role: su.role}); err != nil {
			return SeedResult{}, fmt.Errorf("seed seat %s: %w", su.user.UserID, err)
		}
		res.Users++
	}

	citric, err := b.CreateMaterialIdentifier(ctx, types.MaterialIdentifier{
		Scheme: types.SchemeCAS, Value: "77-92-9", Description: "Citric acid",
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed identifier: %w", err)
	}
	xanthan, err := b.CreateMaterialIdentifier(ctx, types.MaterialIdentifier{
		Scheme: types.SchemeECNumber, Value: "E415", Description: "Xanthan gum",
	})
	if err != nil {
		return SeedResult{}, fmt.Errorf("seed identifier: %w", err)
	}

	listings := []struct {
		listing     types.Listing
		publishedAt *time.Time
	}{
		{types.Listing{OrgID: SeedOrgBrightChem, Type: types.ListingSell, Title: "Citric acid anhydrous, 20 t", Quantity: "20", Unit: "t", Location: "Hamburg", MaterialIdentifierID: citric.IdentifierID}, ptr(now.Add(-72 * time.Hour))},
		{types.Listing{OrgID: SeedOrgBrightChem, Type: types.ListingSell, Title: "Xanthan gum 80 mesh, 5 t", Quantity: "5", Unit: "t", Location: "Bremen", MaterialIdentifierID: xanthan.IdentifierID}, ptr(now.Add(-10 * time.Hour))},
		{types.Listing{OrgID: SeedOrgAcme, Type: types.ListingBuyRequest, Title: "Looking for citric acid monohydrate", Quantity: "50", Unit: "t", Location: "Rotterdam", MaterialIdentifierID: citric.IdentifierID}, nil},
	}
	for _, entry := range listings {
		l := entry.listing
		l.CreatedAt = now.Add(-96 * time.Hour)
		created, err := b.CreateListing(ctx, l)
		if err != nil {
			return SeedResult{}, fmt.Errorf("seed listing %q: %w", l.Title, err)
		}
		if entry.publishedAt != nil {
			if err := created.Publish(*entry.publishedAt); err != nil {
				return SeedResult{}, err
			}
			if err := b.UpdateListingStatus(ctx, created, types.ListingDraft); err != nil {
				return SeedResult{}, fmt.Errorf("publish seed listing: %w", err)
			}
		}
		res.Listings++
		res.ListingIDs = append(res.ListingIDs, created.ListingID)
	}
	return res, nil
}

func ptr[T any](v T) *T { return &v }
