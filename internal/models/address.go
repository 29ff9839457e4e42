package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Address point accuracy reported by the address register.
const (
	AccuracyRegistry     = "registry"
	AccuracyInterpolated = "interpolated"
	AccuracyApproximate  = "approximate"
)

// Confidence scores assigned to new locations by how they were identified.
const (
	ConfidenceRegistry     = 95
	ConfidenceInterpolated = 75
	ConfidenceApproximate  = 60
	ConfidenceCoordinate   = 50
	ConfidenceTitleOnly    = 40
)

// AddressPoint is one row of the address register used for geocoding, reverse
// geocoding and title lookups.
type AddressPoint struct {
	ID                   int64   `json:"id"`
	FullAddress          string  `json:"full_address"`
	Suburb               string  `json:"suburb,omitempty"`
	City                 string  `json:"city,omitempty"`
	TerritorialAuthority string  `json:"territorial_authority,omitempty"`
	RegionalCouncil      string  `json:"regional_council,omitempty"`
	Postcode             string  `json:"postcode,omitempty"`
	TitleReference       string  `json:"title_reference,omitempty"`
	LegalDescription     string  `json:"legal_description,omitempty"`
	Latitude             float64 `json:"latitude"`
	Longitude            float64 `json:"longitude"`
	Accuracy             string  `json:"accuracy"`
}

// Confidence maps the point's accuracy to a location confidence score.
func (a AddressPoint) Confidence() int {
	switch a.Accuracy {
	case AccuracyRegistry:
		return ConfidenceRegistry
	case AccuracyInterpolated:
		return ConfidenceInterpolated
	default:
		return ConfidenceApproximate
	}
}

// Formatted joins the address with its suburb and city, skipping parts that are
// empty or already present at the end of the address.
func (a AddressPoint) Formatted() string {
	parts := []string{strings.TrimSpace(a.FullAddress)}
	for _, extra := range []string{a.Suburb, a.City} {
		extra = strings.TrimSpace(extra)
		if extra == "" || strings.HasSuffix(NormalizeAddress(strings.Join(parts, " ")), NormalizeAddress(extra)) {
			continue
		}
		parts = append(parts, extra)
	}
	if parts[0] == "" {
		parts = parts[1:]
	}
	return strings.Join(parts, ", ")
}

// HasCoordinates reports whether the point carries a usable position.
func (a AddressPoint) HasCoordinates() bool {
	return !(a.Latitude == 0 && a.Longitude == 0)
}

// NormalizeAddress canonicalizes an address for equality checks: diacritics
// (macrons) are stripped, case is folded, commas dropped and whitespace
// collapsed. "12 Māori Lane, Ōtautahi" and "12 maori lane otautahi" compare equal.
func NormalizeAddress(address string) string {
	// Chains carry state, so each call builds its own.
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(folder, address)
	if err != nil {
		stripped = address
	}
	folded := cases.Fold().String(stripped)
	folded = strings.ReplaceAll(folded, ",", " ")
	return strings.Join(strings.Fields(folded), " ")
}
