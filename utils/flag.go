package utils

import "strings"

var falseFlags = map[string]bool{
	"":      true,
	"0":     true,
	"f":     true,
	"false": true,
	"n":     true,
	"no":    true,
	"off":   true,
}

// ParseFlag reads an amenity indicator from a form or spreadsheet cell.
// Absent, blank and the usual negative spellings ("0", "f", "false", "n",
// "no", "off", any case, surrounding space ignored) are false. Any other
// value, e.g. "1", "true", "on" or "yes", is true.
func ParseFlag(v string) bool {
	return !falseFlags[strings.ToLower(strings.TrimSpace(v))]
}
