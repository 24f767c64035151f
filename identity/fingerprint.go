package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"propmarket/models"
)

var (
	streetReplacements = map[string]string{
		"street":       "st",
		"avenue":       "ave",
		"road":         "rd",
		"marg":         "rd",
		"lane":         "ln",
		"galli":        "ln",
		"chowk":        "chk",
		"tole":         "tol",
		"north":        "n",
		"south":        "s",
		"east":         "e",
		"west":         "w",
		"apartment":    "apt",
		"building":     "bldg",
		"floor":        "fl",
		"municipality": "mun",
		"metropolitan": "metro",
		"ward":         "wd",
		"number":       "no",
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
)

// Fingerprint identifies a physical listing independent of price and wording,
// so a seller re-submitting the same property is caught.
func Fingerprint(l *models.PropertyListing) string {
	attrs := l.Attributes
	input := fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		l.SellerID,
		NormalizeAddress(l.Address),
		NormalizeAddress(l.City),
		strings.ToLower(string(l.PropertyType)),
		strings.ToLower(string(l.ListingType)),
		intKey(attrs.Bedrooms),
		floatKey(attrs.Area),
		floatKey(attrs.LandSize),
	)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, strips punctuation and abbreviates common
// street words token by token.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	tokens := strings.Fields(addr)
	for i, tok := range tokens {
		if abbrev, ok := streetReplacements[tok]; ok {
			tokens[i] = abbrev
		}
	}
	return multiSpaceRegex.ReplaceAllString(strings.Join(tokens, " "), " ")
}

func intKey(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

func floatKey(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}
