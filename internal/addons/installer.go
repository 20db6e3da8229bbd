package addons

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	clientretry "k8s.io/client-go/util/retry"
	ctrlclient "sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"github.com/imamik/proxk8s/internal/addons/helm"
	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/labels"
	"github.com/imamik/proxk8s/internal/util/naming"
	"github.com/imamik/proxk8s/internal/util/retry"
)

// StateNamespace holds the addon state ConfigMap.
const StateNamespace = metav1.NamespaceSystem

// RenderFunc renders a chart into multi-document YAML.
type RenderFunc func(ctx context.Context, c Chart) ([]byte, error)

// Options configures an Installer.
type Options struct {
	Cluster      string
	KubeVersion  string
	Rollout      time.Duration
	PollInterval time.Duration
	// Render overrides chart rendering. Nil downloads and renders the
	// pinned chart.
	Render RenderFunc
}

// Installer plans and applies chart installs.
type Installer struct {
	client k8sclient.Client
	opts   Options
}

// NewInstaller creates an Installer using client for every cluster call.
func NewInstaller(client k8sclient.Client, opts Options) *Installer {
	if opts.Render == nil {
		kubeVersion := opts.KubeVersion
		opts.Render = func(ctx context.Context, c Chart) ([]byte, error) {
			return helm.NewRenderer(c.Name, c.Namespace, kubeVersion).RenderFromSpec(ctx, c.Spec, c.Values)
		}
	}
	if opts.Rollout == 0 {
		opts.Rollout = 10 * time.Minute
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 5 * time.Second
	}
	return &Installer{client: client, opts: opts}
}

// Plan compares each chart's input digest and workload rollout with the
// cluster. Charts are returned in the given order; charts sharing a
// subsystem run serially.
func (i *Installer) Plan(ctx context.Context, charts ...Chart) (*reconcile.Plan, error) {
	applied, err := i.appliedDigests(ctx)
	if err != nil {
		return nil, err
	}

	plan := &reconcile.Plan{}
	for _, c := range charts {
		digest, err := c.Digest()
		if err != nil {
			return nil, err
		}

		observed := reconcile.Absent[string]()
		if d, ok := applied[c.Name]; ok {
			observed = reconcile.Found(d)
		}
		action := reconcile.Decide(digest, observed, func(d, o string) bool { return d == o })
		if action == reconcile.ActionNoop && !i.rolledOut(ctx, c) {
			action = reconcile.ActionUpdate
		}

		plan.Add(reconcile.Action{
			Kind:      Kind,
			Target:    c.target(),
			Name:      c.Name,
			Type:      action,
			Desired:   fmt.Sprintf("%s %s", c.Spec, short(digest)),
			Observed:  short(observed.Value),
			Subsystem: c.Subsystem,
			Apply: func(ctx context.Context) error {
				return i.install(ctx, c, digest)
			},
		})
	}
	return plan, nil
}

func (i *Installer) rolledOut(ctx context.Context, c Chart) bool {
	for _, w := range c.Workloads {
		done, err := i.client.RolloutComplete(ctx, w)
		if err != nil || !done {
			return false
		}
	}
	return true
}

func (i *Installer) install(ctx context.Context, c Chart, digest string) error {
	if len(c.NamespaceLabels) > 0 {
		ns := helm.NamespaceManifest(c.Namespace, c.NamespaceLabels)
		if err := i.client.ApplyManifests(ctx, []byte(ns), naming.FieldManager); err != nil {
			return err
		}
	} else if err := i.client.EnsureNamespace(ctx, c.Namespace); err != nil {
		return err
	}

	manifests, err := i.opts.Render(ctx, c)
	if err != nil {
		return err
	}
	if err := i.client.ApplyManifests(ctx, manifests, naming.FieldManager); err != nil {
		return err
	}
	if err := i.client.RefreshDiscovery(ctx); err != nil {
		return err
	}

	for _, w := range c.Workloads {
		if err := i.client.WaitForRollout(ctx, w, i.opts.PollInterval, i.opts.Rollout); err != nil {
			return err
		}
	}

	if len(c.Post) > 0 {
		if c.PostWebhook != "" {
			if err := i.waitForWebhook(ctx, c.Namespace, c.PostWebhook); err != nil {
				return err
			}
		}
		if err := i.client.ApplyManifests(ctx, c.Post, naming.FieldManager); err != nil {
			return err
		}
	}

	return i.recordDigest(ctx, c.Name, digest)
}

func (i *Installer) waitForWebhook(ctx context.Context, namespace, service string) error {
	err := retry.Poll(ctx, i.opts.PollInterval, i.opts.Rollout, func(ctx context.Context) (bool, error) {
		ok, err := i.client.HasReadyEndpoints(ctx, namespace, service)
		if err != nil {
			return false, nil
		}
		return ok, nil
	})
	if err != nil {
		return fmt.Errorf("webhook %s/%s not ready: %w", namespace, service, err)
	}
	return nil
}

func (i *Installer) stateKey() ctrlclient.ObjectKey {
	return ctrlclient.ObjectKey{Namespace: StateNamespace, Name: naming.AddonState(i.opts.Cluster)}
}

func (i *Installer) appliedDigests(ctx context.Context) (map[string]string, error) {
	cm := &corev1.ConfigMap{}
	err := i.client.Controller().Get(ctx, i.stateKey(), cm)
	if apierrors.IsNotFound(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read addon state: %w", err)
	}
	return cm.Data, nil
}

// recordDigest stores digest under name. Charts of different subsystems
// record concurrently, so conflicts are retried.
func (i *Installer) recordDigest(ctx context.Context, name, digest string) error {
	key := i.stateKey()
	retriable := func(err error) bool {
		return apierrors.IsConflict(err) || apierrors.IsAlreadyExists(err)
	}
	err := clientretry.OnError(clientretry.DefaultRetry, retriable, func() error {
		cm := &corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Namespace: key.Namespace, Name: key.Name}}
		_, err := controllerutil.CreateOrUpdate(ctx, i.client.Controller(), cm, func() error {
			if cm.Labels == nil {
				cm.Labels = map[string]string{}
			}
			for k, v := range labels.NewLabelBuilder(i.opts.Cluster).Build() {
				cm.Labels[k] = v
			}
			if cm.Data == nil {
				cm.Data = map[string]string{}
			}
			cm.Data[name] = digest
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record addon state for %s: %w", name, err)
	}
	return nil
}

func short(digest string) string {
	const n = len("sha256:") + 12
	if len(digest) > n {
		return digest[:n]
	}
	return digest
}
