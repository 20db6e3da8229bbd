package gitops

import (
	"context"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/labels"
	"github.com/imamik/proxk8s/internal/util/naming"
)

// Kind is the reconcile resource kind.
const Kind = "Application"

// InClusterServer is the Argo CD destination for the local cluster.
const InClusterServer = "https://kubernetes.default.svc"

// ApplicationGVK identifies Argo CD Applications.
var ApplicationGVK = schema.GroupVersionKind{Group: "argoproj.io", Version: "v1alpha1", Kind: "Application"}

// Reconciler converges Argo CD Applications.
type Reconciler struct {
	client  client.Client
	cluster string
	cfg     config.GitOpsConfig
}

// NewReconciler creates a Reconciler for the configured applications.
func NewReconciler(c client.Client, cluster string, cfg config.GitOpsConfig) *Reconciler {
	return &Reconciler{client: c, cluster: cluster, cfg: cfg}
}

func newApplication() *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(ApplicationGVK)
	return u
}

// mutate sets the owned fields of an Application. Fields set by Argo CD
// itself (status, operation) are left alone.
func (r *Reconciler) mutate(u *unstructured.Unstructured, app config.Application) error {
	lbls := u.GetLabels()
	if lbls == nil {
		lbls = map[string]string{}
	}
	for k, v := range labels.NewLabelBuilder(r.cluster).Build() {
		lbls[k] = v
	}
	u.SetLabels(lbls)

	spec := map[string]any{
		"project": "default",
		"source": map[string]any{
			"repoURL":        r.cfg.RepoURL,
			"path":           app.Path,
			"targetRevision": r.cfg.Revision,
		},
		"destination": map[string]any{
			"server":    InClusterServer,
			"namespace": app.Name,
		},
		"syncPolicy": map[string]any{
			"automated": map[string]any{
				"prune":    true,
				"selfHeal": true,
			},
			"syncOptions": []any{"CreateNamespace=true"},
		},
	}
	return unstructured.SetNestedMap(u.Object, spec, "spec")
}

// Plan compares configured Applications with the cluster. Each
// Application is its own target.
func (r *Reconciler) Plan(ctx context.Context) (*reconcile.Plan, error) {
	plan := &reconcile.Plan{}
	desired := make(map[string]bool, len(r.cfg.Applications))

	for _, app := range r.cfg.Applications {
		name := naming.Application(r.cluster, app.Name)
		desired[name] = true

		existing := newApplication()
		err := r.client.Get(ctx, client.ObjectKey{Namespace: r.cfg.Namespace, Name: name}, existing)
		observed := reconcile.Found(existing)
		if apierrors.IsNotFound(err) {
			observed = reconcile.Absent[*unstructured.Unstructured]()
		} else if err != nil {
			return nil, fmt.Errorf("failed to get application %s: %w", name, err)
		}

		want := newApplication()
		if observed.Exists {
			want = existing.DeepCopy()
		}
		if err := r.mutate(want, app); err != nil {
			return nil, err
		}
		action := reconcile.Decide(want, observed, func(d, o *unstructured.Unstructured) bool {
			return equality.Semantic.DeepEqual(d, o)
		})

		plan.Add(reconcile.Action{
			Kind:     Kind,
			Target:   name,
			Name:     name,
			Type:     action,
			Desired:  fmt.Sprintf("%s@%s", app.Path, r.cfg.Revision),
			Observed: describe(observed),
			Apply: func(ctx context.Context) error {
				return r.apply(ctx, name, app)
			},
		})
	}

	stale, err := r.stale(ctx, desired)
	if err != nil {
		return nil, err
	}
	for _, name := range stale {
		plan.Add(reconcile.Action{
			Kind:     Kind,
			Target:   name,
			Name:     name,
			Type:     reconcile.DecideAbsent(reconcile.Found(name)),
			Observed: "present",
			Apply: func(ctx context.Context) error {
				u := newApplication()
				u.SetNamespace(r.cfg.Namespace)
				u.SetName(name)
				return client.IgnoreNotFound(r.client.Delete(ctx, u))
			},
		})
	}
	return plan, nil
}

func (r *Reconciler) apply(ctx context.Context, name string, app config.Application) error {
	u := newApplication()
	u.SetNamespace(r.cfg.Namespace)
	u.SetName(name)
	_, err := controllerutil.CreateOrUpdate(ctx, r.client, u, func() error {
		return r.mutate(u, app)
	})
	if apierrors.IsAlreadyExists(err) {
		return fmt.Errorf("application %s: %w", name, reconcile.ErrResourceConflict)
	}
	return err
}

// stale lists Applications labelled for this cluster that are not desired.
func (r *Reconciler) stale(ctx context.Context, desired map[string]bool) ([]string, error) {
	list := &unstructured.UnstructuredList{}
	list.SetGroupVersionKind(ApplicationGVK.GroupVersion().WithKind(ApplicationGVK.Kind + "List"))
	err := r.client.List(ctx, list,
		client.InNamespace(r.cfg.Namespace),
		client.MatchingLabels{
			labels.KeyCluster:   r.cluster,
			labels.KeyManagedBy: labels.ManagedByProxk8s,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}

	var out []string
	for _, item := range list.Items {
		if !desired[item.GetName()] {
			out = append(out, item.GetName())
		}
	}
	sort.Strings(out)
	return out, nil
}

func describe(observed reconcile.Observed[*unstructured.Unstructured]) string {
	if !observed.Exists {
		return ""
	}
	path, _, _ := unstructured.NestedString(observed.Value.Object, "spec", "source", "path")
	rev, _, _ := unstructured.NestedString(observed.Value.Object, "spec", "source", "targetRevision")
	return fmt.Sprintf("%s@%s", path, rev)
}
