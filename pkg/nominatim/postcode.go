package nominatim

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var postcodeRe = regexp.MustCompile(`\b(\d{5})\b`)

// ExtractPostcode prefers the postcode of the resolved place and otherwise
// takes the first standalone five-digit run in address. It returns "" when
// neither yields one.
func ExtractPostcode(address string, p *Place) string {
	if p != nil && p.Address.Postcode != "" {
		return p.Address.Postcode
	}
	if m := postcodeRe.FindStringSubmatch(address); m != nil {
		return m[1]
	}
	return ""
}

// CacheKey normalizes an address (case, surrounding and repeated
// whitespace) and hashes it.
func CacheKey(address string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(address), " "))
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}
