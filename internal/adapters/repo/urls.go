package repo

import (
	"fmt"
	"regexp"
	"strings"
)

// Regular expressions for parsing repository locations.
var (
	// httpsURLPattern matches HTTPS URLs like:
	// https://github.com/owner/repo.git
	// https://github.com/owner/repo
	httpsURLPattern = regexp.MustCompile(`^https?://[^/]+/([^/]+)/([^/]+?)(?:\.git)?/?$`)

	// sshURLPattern matches SSH URLs like:
	// git@github.com:owner/repo.git
	// ssh://git@github.com/owner/repo.git
	sshURLPattern = regexp.MustCompile(`^(?:ssh://)?git@[^:/]+[:/]([^/]+)/([^/]+?)(?:\.git)?$`)

	// shorthandPattern matches owner/repo.
	shorthandPattern = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?$`)
)

// Location identifies a hosted repository.
type Location struct {
	Owner string
	Name  string
}

// String returns owner/name.
func (l Location) String() string {
	return l.Owner + "/" + l.Name
}

// ParseLocation extracts owner and name from a repository reference.
// Supported forms:
//   - https://github.com/owner/repo(.git)
//   - git@github.com:owner/repo(.git)
//   - ssh://git@github.com/owner/repo(.git)
//   - owner/repo
func ParseLocation(ref string) (Location, error) {
	ref = strings.TrimSpace(ref)

	for _, pattern := range []*regexp.Regexp{httpsURLPattern, sshURLPattern, shorthandPattern} {
		if matches := pattern.FindStringSubmatch(ref); len(matches) == 3 {
			return Location{Owner: matches[1], Name: matches[2]}, nil
		}
	}

	return Location{}, fmt.Errorf("unrecognized repository location: %s", ref)
}

// IsRemote reports whether ref names a network remote rather than a local path.
func IsRemote(ref string) bool {
	return strings.Contains(ref, "://") || sshURLPattern.MatchString(ref)
}
