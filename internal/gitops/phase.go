package gitops

import (
	"fmt"

	"github.com/imamik/proxk8s/internal/deploykey"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/keygen"
)

const phase = "gitops"

// Phase converges the repository key, its registration with the git
// provider and the Argo CD Applications.
type Phase struct {
	// Providers overrides the git provider clients, for tests.
	Providers deploykey.ProviderFactory
	// Generate overrides key pair generation, for tests.
	Generate func() (*keygen.KeyPair, error)
}

// NewPhase creates the gitops phase.
func NewPhase() *Phase {
	return &Phase{}
}

// Name implements the provisioning.Phase interface.
func (p *Phase) Name() string { return phase }

// Provision implements the provisioning.Phase interface. A failed key
// store or Application write is fatal; a failed registration is not.
func (p *Phase) Provision(ctx *provisioning.Context) error {
	kube, err := ctx.Kube()
	if err != nil {
		return err
	}
	cfg := ctx.Config.GitOps

	providers := p.Providers
	if providers == nil {
		providers = deploykey.NewProviderFactory(cfg.ProviderToken, cfg.ProviderAPIURL)
	}
	keys := deploykey.NewManager(kube.Controller(), deploykey.Options{
		Cluster:   ctx.Config.Cluster.Name,
		Namespace: cfg.Namespace,
		ConfigMap: cfg.KeyConfigMap,
		Secret:    cfg.RepositorySecret,
		RepoURL:   cfg.RepoURL,
		Providers: providers,
		Generate:  p.Generate,
	})

	var store *reconcile.Plan
	err = ctx.Inspect("kubernetes", func() (err error) {
		store, err = keys.PlanStore(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to inspect repository key: %w", err)
	}
	if err := ctx.Execute(phase, store); err != nil {
		return err
	}

	p.register(ctx, keys)

	apps := NewReconciler(kube.Controller(), ctx.Config.Cluster.Name, cfg)
	var plan *reconcile.Plan
	err = ctx.Inspect("kubernetes", func() (err error) {
		plan, err = apps.Plan(ctx)
		return err
	})
	if err != nil {
		return err
	}
	return ctx.Execute(phase, plan)
}

// register adds the deploy key to the repository. Its failures end up in
// the report only.
func (p *Phase) register(ctx *provisioning.Context, keys *deploykey.Manager) {
	plan, state, err := keys.PlanRegistration(ctx)
	if err != nil {
		ctx.Report.Record(reconcile.Outcome{
			Phase: phase, Kind: deploykey.KindDeployKey, Target: ctx.Config.GitOps.RepoURL,
			Action: reconcile.ActionCreate, Status: reconcile.StatusWarning,
			Err: fmt.Errorf("deploy key not registered: %w", err),
		})
		provisioning.LogValidationWarning(ctx.Observer, phase, err.Error())
		return
	}
	_ = ctx.Execute(phase, plan)
	ctx.Observer.Printf("[%s] repository key state before registration: %s", phase, state)
}
