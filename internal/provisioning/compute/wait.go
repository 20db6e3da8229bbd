package compute

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/util/netutil"
	"github.com/imamik/proxk8s/internal/util/retry"
)

// ErrAddressMismatch is returned when a guest reports an address other than
// its inventory address.
var ErrAddressMismatch = errors.New("guest address does not match inventory")

// waitForNode polls the guest agent until it reports an IPv4 address, checks
// it against the inventory, then waits for SSH.
func (p *Provisioner) waitForNode(c context.Context, ctx *provisioning.Context, node config.Node) error {
	vmid, ok := ctx.State.VMID(node.Name)
	if !ok {
		return fmt.Errorf("no VM recorded for %s", node.Name)
	}

	var addr netip.Addr
	err := retry.Poll(c, ctx.Timeouts.GuestIPPoll, ctx.Timeouts.GuestIP, func(c context.Context) (bool, error) {
		ip, ok, err := ctx.Hypervisor.GuestIPv4(c, vmid)
		if err != nil {
			// The agent answers with an error until it has started.
			return false, nil
		}
		addr = ip
		return ok, nil
	})
	if err != nil {
		return fmt.Errorf("guest agent of VM %d reported no address: %w", vmid, err)
	}
	if addr != node.Address {
		return fmt.Errorf("%w: %s reports %s, expected %s", ErrAddressMismatch, node.Name, addr, node.Address)
	}

	if err := p.waitPort(c, addr.String(), netutil.SSHPort, ctx.Timeouts.SSHReady); err != nil {
		return err
	}
	return nil
}
