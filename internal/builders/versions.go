package builders

import (
	"regexp"
	"strings"
)

var versionPattern = regexp.MustCompile(`\d+(\.\d+)*`)

// versionFromConstraint extracts the first version number of a manifest
// constraint such as "^8.1", ">=3.9,<4" or "~> 3.2". Fallback is returned
// when the constraint carries no number.
func versionFromConstraint(constraint, fallback string) string {
	if v := versionPattern.FindString(strings.TrimSpace(constraint)); v != "" {
		return v
	}
	return fallback
}
