package proxmox

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	gp "github.com/luthermonson/go-proxmox"
)

const (
	defaultPort    = "8006"
	apiPath        = "/api2/json"
	requestTimeout = 60 * time.Second
	taskInterval   = time.Second
	taskTimeout    = 10 * time.Minute
)

// APIError is a non-2xx answer from the Proxmox API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("proxmox API error (status %d): %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of the failed call.
func (e *APIError) StatusCode() int { return e.Status }

// IsNotFound reports whether err is a missing-object answer. Proxmox reports
// unknown VMs as 500 with a "does not exist" message.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == http.StatusNotFound || strings.Contains(apiErr.Message, "does not exist")
}

// IsUnauthorized reports whether err is an authentication or permission failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden)
}

// Config holds connection settings.
type Config struct {
	// Host is "host" or "host:port"; the port defaults to 8006.
	Host        string
	Node        string
	TokenID     string
	TokenSecret string
	VerifyTLS   bool
}

// Client talks to one Proxmox node.
type Client struct {
	api      *gp.Client
	baseURL  string
	nodeName string

	taskInterval time.Duration
	taskTimeout  time.Duration

	mu   sync.Mutex
	node *gp.Node
}

// NewClient creates a client for cfg.Node.
func NewClient(cfg Config) *Client {
	host := cfg.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, defaultPort)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifyTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed PVE certificates
	}
	httpClient := &http.Client{
		Transport: statusTransport{next: transport},
		Timeout:   requestTimeout,
	}

	baseURL := "https://" + host + apiPath
	return &Client{
		api: gp.NewClient(baseURL,
			gp.WithHTTPClient(httpClient),
			gp.WithAPIToken(cfg.TokenID, cfg.TokenSecret),
		),
		baseURL:      baseURL,
		nodeName:     cfg.Node,
		taskInterval: taskInterval,
		taskTimeout:  taskTimeout,
	}
}

// Node returns the node name the client operates on.
func (c *Client) Node() string { return c.nodeName }

// pveNode resolves the node once and reuses it for later calls.
func (c *Client) pveNode(ctx context.Context) (*gp.Node, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.node != nil {
		return c.node, nil
	}
	node, err := c.api.Node(ctx, c.nodeName)
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", c.nodeName, err)
	}
	c.node = node
	return node, nil
}

func (c *Client) vm(ctx context.Context, vmid int) (*gp.VirtualMachine, error) {
	node, err := c.pveNode(ctx)
	if err != nil {
		return nil, err
	}
	vm, err := node.VirtualMachine(ctx, vmid)
	if err != nil {
		return nil, fmt.Errorf("get VM %d: %w", vmid, err)
	}
	return vm, nil
}

// wait blocks until task stops and reports a failed exit status as an error.
func (c *Client) wait(ctx context.Context, task *gp.Task) error {
	if task == nil || task.UPID == "" {
		return nil
	}
	if err := task.Wait(ctx, c.taskInterval, c.taskTimeout); err != nil {
		return fmt.Errorf("wait for task %s: %w", task.UPID, err)
	}
	if task.IsFailed {
		return fmt.Errorf("task %s failed: %s", task.UPID, task.ExitStatus)
	}
	return nil
}

func (c *Client) nodePath(format string, args ...any) string {
	return "/nodes/" + c.nodeName + fmt.Sprintf(format, args...)
}

// statusTransport turns non-2xx answers into *APIError before the response
// reaches the API library, so callers can classify failures by status.
type statusTransport struct {
	next http.RoundTripper
}

type errorEnvelope struct {
	Errors  map[string]string `json:"errors"`
	Message string            `json:"message"`
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return resp, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := resp.Status
	var env errorEnvelope
	if json.Unmarshal(raw, &env) == nil {
		if len(env.Errors) > 0 {
			parts := make([]string, 0, len(env.Errors))
			for k, v := range env.Errors {
				parts = append(parts, k+": "+v)
			}
			msg += " (" + strings.Join(parts, "; ") + ")"
		} else if env.Message != "" {
			msg += " (" + strings.TrimSpace(env.Message) + ")"
		}
	}
	return nil, &APIError{Status: resp.StatusCode, Message: msg}
}
