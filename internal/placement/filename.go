package placement

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zombor/receipt-sorter/internal/domain"
)

const (
	maxVendorRunes = 50
	unknownDate    = "UNKNOWN_DATE"
)

var reUnderscores = regexp.MustCompile(`_+`)

// SanitizeVendor makes a vendor name safe for use in a filename.
// SanitizeVendor(SanitizeVendor(s)) == SanitizeVendor(s).
func SanitizeVendor(vendor string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return '_'
		case unicode.IsControl(r), strings.ContainsRune(`<>:"/\|?*`, r):
			return -1
		}
		return r
	}, vendor)
	s = reUnderscores.ReplaceAllString(s, "_")
	if utf8.RuneCountInString(s) > maxVendorRunes {
		s = string([]rune(s)[:maxVendorRunes])
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return domain.Unknown
	}
	return s
}

// Filename builds {date}_{vendor}_{amount}.{ext} for a record
func Filename(record domain.Record, ext string) string {
	date := record.DateString()
	if !record.Date.IsKnown() {
		date = unknownDate
	}
	name := date + "_" + SanitizeVendor(record.Vendor.OrElse("")) + "_" + record.AmountString()
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return name
	}
	return name + "." + ext
}
