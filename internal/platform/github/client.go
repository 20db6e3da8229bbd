// Package github manages repository deploy keys through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v74/github"
)

// DeployKey is a key registered on a repository.
type DeployKey struct {
	ID       int64
	Title    string
	Key      string
	ReadOnly bool
}

// APIError is a non-2xx answer from the GitHub API.
type APIError struct {
	Status int
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github API error (status %d): %v", e.Status, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.Status }

// Client is a minimal GitHub API client for deploy key management.
type Client struct {
	api *gh.Client
}

// NewClient creates a client authenticating with token. A non-empty baseURL
// targets a GitHub Enterprise Server.
func NewClient(token, baseURL string, httpClient *http.Client) (*Client, error) {
	api := gh.NewClient(httpClient).WithAuthToken(token)
	if baseURL != "" {
		var err error
		api, err = api.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github API URL %q: %w", baseURL, err)
		}
	}
	return &Client{api: api}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.api.BaseURL.String() }

// ListDeployKeys returns every deploy key of the repository at path
// (owner/repo).
func (c *Client) ListDeployKeys(ctx context.Context, path string) ([]DeployKey, error) {
	owner, repo, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: 100}
	var all []DeployKey
	for {
		keys, resp, err := c.api.Repositories.ListKeys(ctx, owner, repo, opts)
		if err != nil {
			return nil, wrap(resp, fmt.Errorf("list deploy keys of %s: %w", path, err))
		}
		for _, k := range keys {
			all = append(all, fromKey(k))
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// AddDeployKey registers a read-only deploy key on the repository at path.
func (c *Client) AddDeployKey(ctx context.Context, path, title, key string) (DeployKey, error) {
	owner, repo, err := splitPath(path)
	if err != nil {
		return DeployKey{}, err
	}

	created, resp, err := c.api.Repositories.CreateKey(ctx, owner, repo, &gh.Key{
		Title:    gh.Ptr(title),
		Key:      gh.Ptr(key),
		ReadOnly: gh.Ptr(true),
	})
	if err != nil {
		return DeployKey{}, wrap(resp, fmt.Errorf("add deploy key to %s: %w", path, err))
	}
	return fromKey(created), nil
}

func fromKey(k *gh.Key) DeployKey {
	return DeployKey{
		ID:       k.GetID(),
		Title:    k.GetTitle(),
		Key:      k.GetKey(),
		ReadOnly: k.GetReadOnly(),
	}
}

func splitPath(path string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.Trim(path, "/"), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository path %q is not owner/repo", path)
	}
	return owner, repo, nil
}

func wrap(resp *gh.Response, err error) error {
	if resp == nil || resp.Response == nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode, Err: err}
	}
	return err
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
