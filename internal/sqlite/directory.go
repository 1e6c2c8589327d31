package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/mesh-intelligence/veilmarket/pkg/types"
)

// CreateOrganization inserts an organization. OrgID and CreatedAt are
// filled in when empty.
func (b *Backend) CreateOrganization(ctx context.Context, org types.Organization) (types.Organization, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Organization{}, err
	}
	if org.OrgID == "" {
		org.OrgID = generateUUID()
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	if err := org.Validate(); err != nil {
		return types.Organization{}, err
	}
	if strings.TrimSpace(org.Handle) == "" {
		return types.Organization{}, types.New(types.CodeInvalidArgument, "handle is required")
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO organizations (org_id, handle, tier, verification, legal_name, website, country, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		org.OrgID, org.Handle, string(org.Tier), string(org.Verification),
		org.LegalName, org.Website, org.Country, toMillis(org.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Organization{}, types.Wrap(types.CodeConflict, "organization already exists", err)
		}
		return types.Organization{}, fmt.Errorf("create organization: %w", err)
	}
	return org, nil
}

// GetOrganization returns one organization, including its identity fields.
func (b *Backend) GetOrganization(ctx context.Context, orgID string) (types.Organization, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.Organization{}, err
	}
	var (
		org       types.Organization
		tier      string
		verif     string
		createdAt int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT org_id, handle, tier, verification, legal_name, website, country, created_at
		 FROM organizations WHERE org_id = ?`, orgID,
	).Scan(&org.OrgID, &org.Handle, &tier, &verif, &org.LegalName, &org.Website, &org.Country, &createdAt)
	if err != nil {
		return types.Organization{}, notFound(err, "organization", orgID)
	}
	org.Tier = types.Tier(tier)
	org.Verification = types.Verification(verif)
	org.CreatedAt = fromMillis(createdAt)
	return org, nil
}

// CreateUser inserts a user.
func (b *Backend) CreateUser(ctx context.Context, u types.User) (types.User, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.User{}, err
	}
	if u.UserID == "" {
		u.UserID = generateUUID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if strings.TrimSpace(u.Email) == "" {
		return types.User{}, types.New(types.CodeInvalidArgument, "email is required")
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (user_id, email, phone, first_name, last_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.UserID, u.Email, u.Phone, u.FirstName, u.LastName, toMillis(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.User{}, types.Wrap(types.CodeConflict, "user already exists", err)
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUser returns one user with contact fields. Callers redact them.
func (b *Backend) GetUser(ctx context.Context, userID string) (types.User, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.User{}, err
	}
	var (
		u         types.User
		createdAt int64
	)
	err = db.QueryRowContext(ctx,
		`SELECT user_id, email, phone, first_name, last_name, created_at FROM users WHERE user_id = ?`, userID,
	).Scan(&u.UserID, &u.Email, &u.Phone, &u.FirstName, &u.LastName, &createdAt)
	if err != nil {
		return types.User{}, notFound(err, "user", userID)
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

// AddSeat gives a user a role in an organization, replacing any previous
// role there.
func (b *Backend) AddSeat(ctx context.Context, seat types.Seat) error {
	db, err := b.handle(ctx)
	if err != nil {
		return err
	}
	if !types.ValidRole(seat.Role) {
		return types.New(types.CodeInvalidArgument, "unknown role "+string(seat.Role))
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO seats (user_id, org_id, role) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, org_id) DO UPDATE SET role = excluded.role`,
		seat.UserID, seat.OrgID, string(seat.Role),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return types.Wrap(types.CodeNotFound, "seat user or organization not found", err)
		}
		return fmt.Errorf("add seat: %w", err)
	}
	return nil
}

// RemoveSeat deletes the user's seat in the organization.
func (b *Backend) RemoveSeat(ctx context.Context, userID, orgID string) error {
	db, err := b.handle(ctx)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx, `DELETE FROM seats WHERE user_id = ? AND org_id = ?`, userID, orgID)
	if err != nil {
		return fmt.Errorf("remove seat: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove seat: %w", err)
	}
	if n == 0 {
		return types.New(types.CodeNotFound, "user "+userID+" has no seat in "+orgID)
	}
	return nil
}

// ListSeatsByUser returns every seat the user holds, with each
// organization's tier.
func (b *Backend) ListSeatsByUser(ctx context.Context, userID string) ([]types.Seat, error) {
	return b.listSeats(ctx, "s.user_id = ?", userID)
}

// ListSeatsByOrg returns every seat in the organization.
func (b *Backend) ListSeatsByOrg(ctx context.Context, orgID string) ([]types.Seat, error) {
	return b.listSeats(ctx, "s.org_id = ?", orgID)
}

func (b *Backend) listSeats(ctx context.Context, where string, arg string) ([]types.Seat, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT s.user_id, s.org_id, s.role, o.tier
		 FROM seats s JOIN organizations o ON o.org_id = s.org_id
		 WHERE `+where+` ORDER BY s.org_id, s.user_id`, arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}
	defer rows.Close()

	var seats []types.Seat
	for rows.Next() {
		var s types.Seat
		var role, tier string
		if err := rows.Scan(&s.UserID, &s.OrgID, &role, &tier); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		s.Role = types.Role(role)
		s.Tier = types.Tier(tier)
		seats = append(seats, s)
	}
	return seats, rows.Err()
}

// CountOwners returns the number of OWNER seats in the organization.
func (b *Backend) CountOwners(ctx context.Context, orgID string) (int, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seats WHERE org_id = ? AND role = ?`, orgID, string(types.RoleOwner),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count owners: %w", err)
	}
	return n, nil
}

// CreateMaterialIdentifier inserts an identifier, or returns the stored one
// when the scheme and value already exist.
func (b *Backend) CreateMaterialIdentifier(ctx context.Context, m types.MaterialIdentifier) (types.MaterialIdentifier, error) {
	if err := m.Validate(); err != nil {
		return types.MaterialIdentifier{}, err
	}
	if m.IdentifierID == "" {
		m.IdentifierID = generateUUID()
	}
	var out types.MaterialIdentifier
	err := b.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO material_identifiers (identifier_id, scheme, value, description)
			 VALUES (?, ?, ?, ?) ON CONFLICT (scheme, value) DO NOTHING`,
			m.IdentifierID, string(m.Scheme), m.Value, m.Description,
		)
		if err != nil {
			return fmt.Errorf("create material identifier: %w", err)
		}
		var scheme string
		return tx.QueryRowContext(ctx,
			`SELECT identifier_id, scheme, value, description FROM material_identifiers WHERE scheme = ? AND value = ?`,
			string(m.Scheme), m.Value,
		).Scan(&out.IdentifierID, &scheme, &out.Value, &out.Description)
	})
	if err != nil {
		return types.MaterialIdentifier{}, err
	}
	out.Scheme = m.Scheme
	return out, nil
}

// GetMaterialIdentifier returns one identifier.
func (b *Backend) GetMaterialIdentifier(ctx context.Context, id string) (types.MaterialIdentifier, error) {
	db, err := b.handle(ctx)
	if err != nil {
		return types.MaterialIdentifier{}, err
	}
	var (
		m      types.MaterialIdentifier
		scheme string
	)
	err = db.QueryRowContext(ctx,
		`SELECT identifier_id, scheme, value, description FROM material_identifiers WHERE identifier_id = ?`, id,
	).Scan(&m.IdentifierID, &scheme, &m.Value, &m.Description)
	if err != nil {
		return types.MaterialIdentifier{}, notFound(err, "material identifier", id)
	}
	m.Scheme = types.IdentifierScheme(scheme)
	return m, nil
}
