package types

import (
	"regexp"
	"strings"
	"time"
)

// ListingType distinguishes supply from demand.
type ListingType string

// Listing types.
const (
	ListingSell       ListingType = "SELL"
	ListingBuyRequest ListingType = "BUY_REQUEST"
)

// ListingStatus is a listing's lifecycle state.
type ListingStatus string

// Listing states. The only legal moves are DRAFT to PUBLISHED and
// PUBLISHED to ARCHIVED.
const (
	ListingDraft     ListingStatus = "DRAFT"
	ListingPublished ListingStatus = "PUBLISHED"
	ListingArchived  ListingStatus = "ARCHIVED"
)

// Listing is an organization's offer to sell or request to buy a material.
type Listing struct {
	ListingID            string        `json:"listing_id"`
	OrgID                string        `json:"org_id"`
	Type                 ListingType   `json:"type"`
	Status               ListingStatus `json:"status"`
	Title                string        `json:"title"`
	Description          string        `json:"description"`
	Quantity             string        `json:"quantity,omitempty"`
	Unit                 string        `json:"unit,omitempty"`
	Location             string        `json:"location,omitempty"`
	MaterialIdentifierID string        `json:"material_identifier_id"`
	PublishedAt          *time.Time    `json:"published_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// Validate checks the fields required to store a listing.
func (l Listing) Validate() error {
	if l.OrgID == "" {
		return New(CodeInvalidArgument, "listing org is required")
	}
	if l.Type != ListingSell && l.Type != ListingBuyRequest {
		return New(CodeInvalidArgument, "unknown listing type "+string(l.Type))
	}
	if title := strings.TrimSpace(l.Title); len(title) < 5 || len(title) > 200 {
		return New(CodeInvalidArgument, "title must be 5 to 200 characters")
	}
	if l.MaterialIdentifierID == "" {
		return New(CodeInvalidArgument, "material identifier is required")
	}
	return nil
}

// Publish moves a DRAFT listing to PUBLISHED and stamps PublishedAt.
// PublishedAt is set once and never changes afterwards.
func (l *Listing) Publish(now time.Time) error {
	if l.Status != ListingDraft || l.PublishedAt != nil {
		return ErrInvalidTransition
	}
	at := now.UTC()
	l.Status = ListingPublished
	l.PublishedAt = &at
	l.UpdatedAt = at
	return nil
}

// Archive moves a PUBLISHED listing to ARCHIVED.
func (l *Listing) Archive(now time.Time) error {
	if l.Status != ListingPublished {
		return ErrInvalidTransition
	}
	l.Status = ListingArchived
	l.UpdatedAt = now.UTC()
	return nil
}

// ListingFilter narrows a listing query. Zero fields match everything.
type ListingFilter struct {
	OrgID  string
	Status ListingStatus
	Type   ListingType
	Limit  int
}

// IdentifierScheme names a material identification scheme.
type IdentifierScheme string

// Identifier schemes.
const (
	SchemeCAS         IdentifierScheme = "CAS"
	SchemeECNumber    IdentifierScheme = "EC_NUMBER"
	SchemeUNNumber    IdentifierScheme = "UN_NUMBER"
	SchemeInternalSKU IdentifierScheme = "INTERNAL_SKU"
)

var (
	casPattern     = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)
	eNumberPattern = regexp.MustCompile(`^E\d{3,4}$`)
)

// MaterialIdentifier names a traded substance under a scheme.
type MaterialIdentifier struct {
	IdentifierID string           `json:"identifier_id"`
	Scheme       IdentifierScheme `json:"scheme"`
	Value        string           `json:"value"`
	Description  string           `json:"description,omitempty"`
}

// Validate checks Value against the format of its scheme.
func (m MaterialIdentifier) Validate() error {
	switch m.Scheme {
	case SchemeCAS:
		if !casPattern.MatchString(m.Value) {
			return New(CodeInvalidArgument, "CAS number must be in format XXXXXX-XX-X")
		}
	case SchemeECNumber:
		if !eNumberPattern.MatchString(m.Value) {
			return New(CodeInvalidArgument, "E-number must be in format EXXX or EXXXX")
		}
	case SchemeUNNumber, SchemeInternalSKU:
		if strings.TrimSpace(m.Value) == "" {
			return New(CodeInvalidArgument, "identifier value is required")
		}
	default:
		return New(CodeInvalidArgument, "unknown identifier scheme "+string(m.Scheme))
	}
	return nil
}
