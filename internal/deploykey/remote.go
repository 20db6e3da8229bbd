package deploykey

import (
	"fmt"
	"net/url"
	"strings"
)

// Remote is a parsed Git remote.
type Remote struct {
	Host string
	// Path is the repository path without leading slash or .git suffix.
	Path string
}

// ParseRemote understands scp-like (git@host:group/repo.git), ssh:// and
// http(s):// remotes.
func ParseRemote(remote string) (Remote, error) {
	remote = strings.TrimSpace(remote)

	var host, path string
	if strings.Contains(remote, "://") {
		u, err := url.Parse(remote)
		if err != nil {
			return Remote{}, fmt.Errorf("invalid repository URL %q: %w", remote, err)
		}
		host, path = u.Hostname(), u.Path
	} else {
		userHost, p, ok := strings.Cut(remote, ":")
		if !ok {
			return Remote{}, fmt.Errorf("invalid repository URL %q: expected host:path", remote)
		}
		if _, h, found := strings.Cut(userHost, "@"); found {
			userHost = h
		}
		host, path = userHost, p
	}

	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	if host == "" || path == "" {
		return Remote{}, fmt.Errorf("invalid repository URL %q: missing host or path", remote)
	}
	return Remote{Host: strings.ToLower(host), Path: path}, nil
}

// ProviderKind identifies a Git hosting provider.
type ProviderKind string

const (
	ProviderUnknown ProviderKind = ""
	ProviderGitLab  ProviderKind = "gitlab"
	ProviderGitHub  ProviderKind = "github"
)

// Detect recognizes the provider by host substring.
func Detect(host string) ProviderKind {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "gitlab"):
		return ProviderGitLab
	case strings.Contains(host, "github"):
		return ProviderGitHub
	default:
		return ProviderUnknown
	}
}

// APIBaseURL returns the REST API root serving a remote on host. The
// public GitHub service returns "" so the client keeps api.github.com.
func APIBaseURL(kind ProviderKind, host string) string {
	switch kind {
	case ProviderGitLab:
		return "https://" + host + "/api/v4"
	case ProviderGitHub:
		if host == "github.com" {
			return ""
		}
		return "https://" + host + "/api/v3"
	default:
		return ""
	}
}
