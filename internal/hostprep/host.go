package hostprep

import "context"

// Host runs commands on one node. *ssh.Client satisfies it.
type Host interface {
	Execute(ctx context.Context, command string) (string, error)
	Check(ctx context.Context, command string) (bool, error)
	WriteFile(ctx context.Context, path, content string, mode uint32) error
}
