package repo

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/MyCarrier-DevOps/pipeline-builder/internal/domain"
)

// Host selects which RepoClient implementation serves a request.
type Host string

// Supported hosts.
const (
	// HostAuto picks a local checkout when the location is a directory, the
	// GitHub API for GitHub locations and a clone for any other remote.
	HostAuto   Host = "auto"
	HostGitHub Host = "github"
	HostGit    Host = "git"
)

const githubHostname = "github.com"

// ParseHost validates a --client value.
func ParseHost(s string) (Host, error) {
	switch h := Host(strings.ToLower(strings.TrimSpace(s))); h {
	case HostAuto, HostGitHub, HostGit:
		return h, nil
	case "":
		return HostAuto, nil
	default:
		return "", &domain.PreconditionError{
			Op:     "ParseHost",
			Reason: fmt.Sprintf("unknown client %q (want auto, github or git)", s),
		}
	}
}

// Request describes the repository to open.
type Request struct {
	// Location is a local path, a clone URL or owner/name.
	Location string

	Host Host

	// Ref is the branch, tag or SHA to read. Empty reads the default branch.
	Ref string

	// GitHub carries credentials and retry settings. Credentials also
	// authenticate clones.
	GitHub GitHubOptions
}

// Open creates the RepoClient for req wrapped in a MemoClient.
// The caller must Close the returned client.
func Open(ctx context.Context, req Request, log Logger) (*MemoClient, error) {
	host, err := ParseHost(string(req.Host))
	if err != nil {
		return nil, err
	}
	if host == HostAuto {
		host = detectHost(req.Location)
	}

	log.Debug(ctx, "opening repository", map[string]interface{}{
		"location": req.Location,
		"client":   string(host),
		"ref":      req.Ref,
	})

	var client domain.RepoClient
	switch host {
	case HostGitHub:
		opts := req.GitHub
		opts.Ref = req.Ref
		client, err = NewGitHubClient(req.Location, opts, log)
	default:
		client, err = openGit(ctx, req, log)
	}
	if err != nil {
		return nil, err
	}
	return NewMemoClient(client, DefaultMemoEntries)
}

func openGit(ctx context.Context, req Request, log Logger) (domain.RepoClient, error) {
	if !IsRemote(req.Location) {
		return OpenGoGitClient(ctx, req.Location, req.Ref, log)
	}
	return CloneGoGitClient(ctx, req.Location, CloneOptions{
		Ref:      req.Ref,
		Auth:     cloneAuth(req.GitHub),
		Attempts: uint(req.GitHub.RetryMax) + 1,
	}, log)
}

// detectHost resolves HostAuto for location.
func detectHost(location string) Host {
	if info, err := os.Stat(location); err == nil && info.IsDir() {
		return HostGit
	}
	if IsRemote(location) {
		if hostname(location) == githubHostname {
			return HostGitHub
		}
		return HostGit
	}
	if _, err := ParseLocation(location); err == nil {
		return HostGitHub
	}
	return HostGit
}

// hostname extracts the server name from a URL or scp-style address.
func hostname(location string) string {
	if strings.Contains(location, "://") {
		u, err := url.Parse(location)
		if err != nil {
			return ""
		}
		return strings.ToLower(u.Hostname())
	}
	// git@host:owner/name
	_, rest, ok := strings.Cut(location, "@")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, ":")
	return strings.ToLower(host)
}

// cloneAuth maps host credentials onto HTTP basic auth. A token is sent as
// the password with a placeholder user.
func cloneAuth(opts GitHubOptions) transport.AuthMethod {
	switch {
	case opts.Token != "":
		return &githttp.BasicAuth{Username: "x-access-token", Password: opts.Token}
	case opts.Username != "":
		return &githttp.BasicAuth{Username: opts.Username, Password: opts.Password}
	default:
		return nil
	}
}
