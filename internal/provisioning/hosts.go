package provisioning

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/platform/ssh"
)

// TranscriptFunc returns where the commands run on node are recorded.
// A nil writer disables the transcript for that node.
type TranscriptFunc func(node string) io.Writer

// SSHDialer connects to inventory nodes with the configured key. Clients are
// created once per node and reused.
type SSHDialer struct {
	user       string
	privateKey []byte
	transcript TranscriptFunc

	mu      sync.Mutex
	clients map[string]Host
}

// NewSSHDialer reads the private key and creates a dialer.
func NewSSHDialer(cfg config.SSHConfig, transcript TranscriptFunc) (*SSHDialer, error) {
	key, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key: %w", err)
	}
	return &SSHDialer{
		user:       cfg.User,
		privateKey: key,
		transcript: transcript,
		clients:    make(map[string]Host),
	}, nil
}

// Dial implements HostDialer.
func (d *SSHDialer) Dial(node config.Node) (Host, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clients[node.Name]; ok {
		return c, nil
	}

	var w io.Writer
	if d.transcript != nil {
		w = d.transcript(node.Name)
	}
	c, err := ssh.NewClient(&ssh.Config{
		Host:       node.Address.String(),
		User:       d.user,
		PrivateKey: d.privateKey,
		Transcript: w,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH client for %s: %w", node.Name, err)
	}
	d.clients[node.Name] = c
	return c, nil
}
