// Package netutil provides network reachability checks for freshly booted hosts.
package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/imamik/proxk8s/internal/util/retry"
)

const (
	// SSHPort is where host preparation connects.
	SSHPort = 22
	// KubeAPIPort is the kube-apiserver port on control-plane nodes.
	KubeAPIPort = 6443

	dialTimeout  = 2 * time.Second
	pollInterval = time.Second
)

// PortOpen reports whether a TCP connection to ip:port succeeds right now.
func PortOpen(ctx context.Context, ip string, port int) bool {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitForPort waits for a TCP port to be open on the target IP.
// It checks every second until the port is accessible or the timeout is reached.
func WaitForPort(ctx context.Context, ip string, port int, timeout time.Duration) error {
	err := retry.Poll(ctx, pollInterval, timeout, func(ctx context.Context) (bool, error) {
		return PortOpen(ctx, ip, port), nil
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", net.JoinHostPort(ip, strconv.Itoa(port)), err)
	}
	return nil
}
