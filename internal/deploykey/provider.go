package deploykey

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/imamik/proxk8s/internal/platform/github"
	"github.com/imamik/proxk8s/internal/platform/gitlab"
)

// ErrNoProviderToken is returned when registration is attempted without a
// provider API token.
var ErrNoProviderToken = errors.New("no git provider token configured")

// Key is a deploy key as listed by a provider.
type Key struct {
	ID        int64
	PublicKey string
	ReadOnly  bool
}

// Provider lists and registers deploy keys for one repository path.
type Provider interface {
	ListDeployKeys(ctx context.Context, path string) ([]Key, error)
	AddDeployKey(ctx context.Context, path, title, publicKey string) error
}

// ProviderFactory returns the provider client for kind, serving the
// repository remote on host.
type ProviderFactory func(kind ProviderKind, host string) (Provider, error)

// NewProviderFactory builds provider clients from an API token. The API
// base URL is derived from the remote host unless apiURL overrides it.
func NewProviderFactory(token, apiURL string) ProviderFactory {
	return func(kind ProviderKind, host string) (Provider, error) {
		if token == "" {
			return nil, ErrNoProviderToken
		}
		base := apiURL
		if base == "" {
			base = APIBaseURL(kind, host)
		}
		switch kind {
		case ProviderGitLab:
			c, err := gitlab.NewClient(token, base)
			if err != nil {
				return nil, err
			}
			return gitlabProvider{c}, nil
		case ProviderGitHub:
			c, err := github.NewClient(token, base, http.DefaultClient)
			if err != nil {
				return nil, err
			}
			return githubProvider{c}, nil
		default:
			return nil, fmt.Errorf("unsupported git provider %q", kind)
		}
	}
}

type gitlabProvider struct{ c *gitlab.Client }

func (p gitlabProvider) ListDeployKeys(ctx context.Context, path string) ([]Key, error) {
	keys, err := p.c.ListDeployKeys(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]Key, len(keys))
	for i, k := range keys {
		out[i] = Key{ID: k.ID, PublicKey: k.Key, ReadOnly: k.ReadOnly}
	}
	return out, nil
}

func (p gitlabProvider) AddDeployKey(ctx context.Context, path, title, publicKey string) error {
	_, err := p.c.AddDeployKey(ctx, path, title, publicKey)
	return err
}

type githubProvider struct{ c *github.Client }

func (p githubProvider) ListDeployKeys(ctx context.Context, path string) ([]Key, error) {
	keys, err := p.c.ListDeployKeys(ctx, path)
	if err != nil {
		return nil, err
	}
	out := make([]Key, len(keys))
	for i, k := range keys {
		out[i] = Key{ID: k.ID, PublicKey: k.Key, ReadOnly: k.ReadOnly}
	}
	return out, nil
}

func (p githubProvider) AddDeployKey(ctx context.Context, path, title, publicKey string) error {
	_, err := p.c.AddDeployKey(ctx, path, title, publicKey)
	return err
}

// statusCoder is implemented by the provider API errors.
type statusCoder interface {
	StatusCode() int
}

// bestEffort reports whether a registration failure should be a warning
// rather than an error.
func bestEffort(err error) bool {
	if errors.Is(err, ErrNoProviderToken) {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		switch sc.StatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
	}
	return false
}
