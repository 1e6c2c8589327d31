package reveal

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	nonSlug    = regexp.MustCompile(`[^a-z0-9]`)
	dashRun    = regexp.MustCompile(`-+`)
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRegex = regexp.MustCompile(`(\+?1?[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
)

const (
	maxHandleBase = 20
	handleSuffix  = 6

	maskedEmail = "•••@masked"
	maskedPhone = "+•••••••••"
)

// Slugify lowercases text and collapses every run of non-alphanumerics to a
// single dash.
func Slugify(text string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(text), "-")
	s = dashRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// GenerateHandle derives a pseudonymous handle from a legal name: a slug of
// at most 20 characters followed by a random 6-character suffix.
func GenerateHandle(legalName string) string {
	base := Slugify(legalName)
	if len(base) > maxHandleBase {
		base = strings.TrimRight(base[:maxHandleBase], "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:handleSuffix]
	if base == "" {
		return "org-" + suffix
	}
	return base + "-" + suffix
}

// MaskContact hides e-mail addresses and phone numbers in free text so that
// negotiation messages cannot leak contact details before reveal.
func MaskContact(text string) string {
	text = emailRegex.ReplaceAllString(text, maskedEmail)
	return phoneRegex.ReplaceAllString(text, maskedPhone)
}
