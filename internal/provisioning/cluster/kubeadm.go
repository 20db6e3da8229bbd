package cluster

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/platform/ssh"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/util/netutil"
)

// Resource kinds used in plans and reports.
const (
	KindKubeadmInit = "KubeadmInit"
	KindKubeadmJoin = "KubeadmJoin"
)

// Host files that mark kubeadm state.
const (
	AdminConf   = "/etc/kubernetes/admin.conf"
	KubeletConf = "/etc/kubernetes/kubelet.conf"
)

// initCommand builds the kubeadm init invocation for the first control plane.
func initCommand(infra *config.InfraConfig, node config.Node) string {
	args := []string{
		"kubeadm", "init",
		"--kubernetes-version", ssh.Quote(infra.Kubernetes.Version),
		"--pod-network-cidr", ssh.Quote(infra.Kubernetes.PodNetworkCIDR.String()),
		"--control-plane-endpoint", ssh.Quote(fmt.Sprintf("%s:%d", node.Address, netutil.KubeAPIPort)),
		"--apiserver-advertise-address", ssh.Quote(node.Address.String()),
		"--node-name", ssh.Quote(node.Name),
		"--upload-certs",
	}
	return strings.Join(args, " ")
}

// joiner builds join commands on the first control plane. The token and
// certificate key are created at most once per run.
type joiner struct {
	first provisioning.Host

	mu      sync.Mutex
	command string
	certKey string
}

func (j *joiner) joinCommand(ctx context.Context) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.command != "" {
		return j.command, nil
	}
	out, err := j.first.Execute(ctx, "kubeadm token create --print-join-command")
	if err != nil {
		return "", fmt.Errorf("failed to create join token: %w", err)
	}
	cmd := lastLine(out)
	if !strings.HasPrefix(cmd, "kubeadm join ") {
		return "", fmt.Errorf("unexpected join command output: %q", out)
	}
	j.command = cmd
	return cmd, nil
}

func (j *joiner) certificateKey(ctx context.Context) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.certKey != "" {
		return j.certKey, nil
	}
	out, err := j.first.Execute(ctx, "kubeadm init phase upload-certs --upload-certs")
	if err != nil {
		return "", fmt.Errorf("failed to upload control-plane certificates: %w", err)
	}
	key := lastLine(out)
	if key == "" {
		return "", fmt.Errorf("upload-certs printed no certificate key")
	}
	j.certKey = key
	return key, nil
}

// join runs kubeadm join on host. Control-plane joins also fetch the
// uploaded certificates.
func (j *joiner) join(ctx context.Context, host provisioning.Host, node config.Node, controlPlane bool) error {
	cmd, err := j.joinCommand(ctx)
	if err != nil {
		return err
	}
	cmd += " --node-name " + ssh.Quote(node.Name)
	if controlPlane {
		key, err := j.certificateKey(ctx)
		if err != nil {
			return err
		}
		cmd += " --control-plane --apiserver-advertise-address " + ssh.Quote(node.Address.String()) +
			" --certificate-key " + ssh.Quote(key)
	}
	if _, err := host.Execute(ctx, cmd); err != nil {
		return fmt.Errorf("kubeadm join failed: %w", err)
	}
	return nil
}

func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
