// Package gitlab manages project deploy keys through the GitLab REST API.
package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gl "gitlab.com/gitlab-org/api/client-go"
)

// DeployKey is a key registered on a project.
type DeployKey struct {
	ID       int64
	Title    string
	Key      string
	ReadOnly bool
}

// APIError is a non-2xx answer from the GitLab API.
type APIError struct {
	Status int
	Err    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab API error (status %d): %v", e.Status, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.Status }

// Client is a minimal GitLab API client for deploy key management.
type Client struct {
	api *gl.Client
}

// NewClient creates a client authenticating with a bearer token. An empty
// baseURL targets gitlab.com.
func NewClient(token, baseURL string, opts ...gl.ClientOptionFunc) (*Client, error) {
	if baseURL != "" {
		opts = append(opts, gl.WithBaseURL(baseURL))
	}
	api, err := gl.NewOAuthClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &Client{api: api}, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.api.BaseURL().String() }

// ListDeployKeys returns every deploy key of the project at path
// (group/subgroup/project). The path is URL-encoded by the client.
func (c *Client) ListDeployKeys(ctx context.Context, path string) ([]DeployKey, error) {
	opt := &gl.ListProjectDeployKeysOptions{ListOptions: gl.ListOptions{PerPage: 100}}

	var all []DeployKey
	for {
		keys, resp, err := c.api.DeployKeys.ListProjectDeployKeys(path, opt, gl.WithContext(ctx))
		if err != nil {
			return nil, wrap(resp, fmt.Errorf("list deploy keys of %s: %w", path, err))
		}
		for _, k := range keys {
			all = append(all, DeployKey{
				ID:       int64(k.ID),
				Title:    k.Title,
				Key:      k.Key,
				ReadOnly: !k.CanPush,
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return all, nil
}

// AddDeployKey registers a read-only deploy key on the project at path.
func (c *Client) AddDeployKey(ctx context.Context, path, title, key string) (DeployKey, error) {
	created, resp, err := c.api.DeployKeys.AddDeployKey(path, &gl.AddDeployKeyOptions{
		Title:   gl.Ptr(title),
		Key:     gl.Ptr(key),
		CanPush: gl.Ptr(false),
	}, gl.WithContext(ctx))
	if err != nil {
		return DeployKey{}, wrap(resp, fmt.Errorf("add deploy key to %s: %w", path, err))
	}
	return DeployKey{ID: int64(created.ID), Title: created.Title, Key: created.Key, ReadOnly: !created.CanPush}, nil
}

func wrap(resp *gl.Response, err error) error {
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
