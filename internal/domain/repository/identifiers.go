package repository

import (
	"fmt"
	"regexp"
)

var identRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// IsValidIdentifier reports whether s is safe to splice into SQL as a column name.
func IsValidIdentifier(s string) bool { return identRe.MatchString(s) }

// ValidateIdentifiers returns an error naming the first unsafe identifier.
func ValidateIdentifiers(names ...string) error {
	for _, n := range names {
		if !IsValidIdentifier(n) {
			return fmt.Errorf("invalid column name %q", n)
		}
	}
	return nil
}

// IsValidSource returns true if s is a known source.
func IsValidSource(s Source) bool {
	switch s {
	case SourceAlphas, SourceTechnical, SourceMarket:
		return true
	default:
		return false
	}
}
