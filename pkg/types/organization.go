package types

import "time"

// Tier is an organization's subscription tier.
type Tier string

// Organization tiers.
const (
	TierFree    Tier = "FREE"
	TierPremium Tier = "PREMIUM"
)

// Verification is the KYB status of an organization.
type Verification string

// Verification states.
const (
	VerificationUnverified Verification = "UNVERIFIED"
	VerificationPending    Verification = "PENDING"
	VerificationVerified   Verification = "VERIFIED"
	VerificationRejected   Verification = "REJECTED"
)

// Role is a seat's role within its organization.
type Role string

// Seat roles, from most to least privileged.
const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

var validTiers = map[Tier]bool{TierFree: true, TierPremium: true}

var validRoles = map[Role]bool{
	RoleOwner:  true,
	RoleAdmin:  true,
	RoleMember: true,
	RoleViewer: true,
}

var validVerifications = map[Verification]bool{
	VerificationUnverified: true,
	VerificationPending:    true,
	VerificationVerified:   true,
	VerificationRejected:   true,
}

// ValidTier reports whether t is a recognized tier.
func ValidTier(t Tier) bool { return validTiers[t] }

// ValidRole reports whether r is a recognized role.
func ValidRole(r Role) bool { return validRoles[r] }

// Organization is a trading party. LegalName, Website and Country identify
// the party and are excluded from JSON; they reach a counterparty only
// through the reveal policy once an offer in a shared thread is accepted.
type Organization struct {
	OrgID        string       `json:"org_id"`
	Handle       string       `json:"handle"`
	Tier         Tier         `json:"tier"`
	Verification Verification `json:"verification"`
	LegalName    string       `json:"-"`
	Website      string       `json:"-"`
	Country      string       `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks the enumerated fields and that a legal name is present.
func (o Organization) Validate() error {
	if o.OrgID == "" {
		return New(CodeInvalidArgument, "organization id is required")
	}
	if o.LegalName == "" {
		return New(CodeInvalidArgument, "legal name is required")
	}
	if !validTiers[o.Tier] {
		return New(CodeInvalidArgument, "unknown tier "+string(o.Tier))
	}
	if !validVerifications[o.Verification] {
		return New(CodeInvalidArgument, "unknown verification "+string(o.Verification))
	}
	return nil
}

// Verified reports whether the organization passed verification.
func (o Organization) Verified() bool {
	return o.Verification == VerificationVerified
}

// Seat is a user's role-scoped membership in one organization. Tier is the
// organization's tier, denormalized so the capability evaluator can decide
// without loading the organization.
type Seat struct {
	UserID string `json:"user_id"`
	OrgID  string `json:"org_id"`
	Role   Role   `json:"role"`
	Tier   Tier   `json:"tier"`
}

// User is an individual account. Email and Phone are contact fields that are
// never readable by anyone but the user.
type User struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}
