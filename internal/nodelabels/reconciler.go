package nodelabels

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/imamik/proxk8s/internal/reconcile"
	pollretry "github.com/imamik/proxk8s/internal/util/retry"
)

// Kind is the resource kind used in plans and reports.
const Kind = "NodeLabels"

// ErrNodeNotRegistered is returned for inventory nodes the API server does
// not know yet.
var ErrNodeNotRegistered = errors.New("node is not registered with the API server")

// Reconciler inspects and updates node labels through the Kubernetes API.
type Reconciler struct {
	client    client.Client
	protected []string
}

// NewReconciler creates a reconciler. protected is the full protected prefix
// list (see labels.ProtectedPrefixes).
func NewReconciler(c client.Client, protected []string) *Reconciler {
	return &Reconciler{client: c, protected: protected}
}

// Inspect reads the current labels of a node.
func (r *Reconciler) Inspect(ctx context.Context, node string) (reconcile.Observed[Set], error) {
	var n corev1.Node
	if err := r.client.Get(ctx, client.ObjectKey{Name: node}, &n); err != nil {
		if apierrors.IsNotFound(err) {
			return reconcile.Absent[Set](), nil
		}
		return reconcile.Observed[Set]{}, fmt.Errorf("failed to get node %s: %w", node, err)
	}
	return reconcile.Found(Set(n.Labels)), nil
}

// WaitRegistered polls until every node has a Node object or timeout
// elapses. On timeout it returns ErrNodeNotRegistered naming the nodes
// still absent.
func (r *Reconciler) WaitRegistered(ctx context.Context, nodes []string, interval, timeout time.Duration) error {
	pending := append([]string(nil), nodes...)
	err := pollretry.Poll(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		remaining := pending[:0]
		for _, node := range pending {
			observed, err := r.Inspect(ctx, node)
			if err != nil {
				if ctx.Err() != nil {
					return false, nil
				}
				return false, err
			}
			if !observed.Exists {
				remaining = append(remaining, node)
			}
		}
		pending = remaining
		return len(pending) == 0, nil
	})
	if errors.Is(err, pollretry.ErrPollTimeout) {
		return fmt.Errorf("%w: %s", ErrNodeNotRegistered, strings.Join(pending, ", "))
	}
	return err
}

// Plan inspects every node in desired and returns one action per node.
func (r *Reconciler) Plan(ctx context.Context, desired map[string]Set) (*reconcile.Plan, error) {
	nodes := make([]string, 0, len(desired))
	for n := range desired {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	plan := &reconcile.Plan{}
	for _, node := range nodes {
		want := desired[node]
		observed, err := r.Inspect(ctx, node)
		if err != nil {
			return nil, reconcile.Unreachable("kubernetes", err)
		}

		if !observed.Exists {
			plan.Add(reconcile.Action{
				Kind: Kind, Target: node, Type: reconcile.ActionUpdate,
				Desired: want.String(),
				Apply: func(context.Context) error {
					return ErrNodeNotRegistered
				},
			})
			continue
		}

		diff := Compute(want, observed.Value, r.protected)
		action := reconcile.Action{
			Kind:     Kind,
			Target:   node,
			Type:     reconcile.ActionNoop,
			Desired:  want.String(),
			Observed: diff.String(),
		}
		if !diff.Empty() {
			action.Type = reconcile.ActionUpdate
			action.Apply = func(ctx context.Context) error {
				return r.apply(ctx, node, want)
			}
		}
		plan.Add(action)
	}
	return plan, nil
}

// apply writes the diff in a single update, recomputing it against the
// freshest object on every conflict retry.
func (r *Reconciler) apply(ctx context.Context, node string, want Set) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var n corev1.Node
		if err := r.client.Get(ctx, client.ObjectKey{Name: node}, &n); err != nil {
			return err
		}
		diff := Compute(want, n.Labels, r.protected)
		if diff.Empty() {
			return nil
		}
		n.Labels = diff.Apply(n.Labels)
		return r.client.Update(ctx, &n)
	})
}
