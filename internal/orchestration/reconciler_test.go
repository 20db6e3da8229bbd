package orchestration

import (
	"context"
	"errors"
	"net/netip"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/reconcile"
)

// journal records the order phases ran in.
type journal struct {
	mu    sync.Mutex
	names []string
}

func (j *journal) add(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.names = append(j.names, name)
}

func (j *journal) ran() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.names...)
}

type fakePhase struct {
	name    string
	journal *journal
	run     func(ctx *provisioning.Context) error
}

func (p fakePhase) Name() string { return p.name }

func (p fakePhase) Provision(ctx *provisioning.Context) error {
	p.journal.add(p.name)
	if p.run != nil {
		return p.run(ctx)
	}
	return nil
}

type silentObserver struct{}

func (silentObserver) Printf(string, ...any)                                {}
func (silentObserver) Event(provisioning.Event)                             {}
func (silentObserver) Progress(string, int, int)                            {}
func (o silentObserver) WithFields(map[string]string) provisioning.Observer { return o }

func testConfig(withInfra bool) *config.Config {
	cfg := &config.Config{
		Cluster:  config.ClusterConfig{Name: "lab", KubeconfigPath: "/nonexistent", Forks: 2},
		Timeouts: config.FastTimeouts(),
	}
	if withInfra {
		cfg.Infra = &config.InfraConfig{
			Inventory: config.InventoryConfig{
				ControlPlanes: config.Nodes{{Name: "cp-1", Address: netip.MustParseAddr("10.0.0.11")}},
			},
		}
	}
	return cfg
}

var _ = Describe("Reconciler", func() {
	var (
		j   *journal
		r   *Reconciler
		cfg *config.Config
	)

	phase := func(name string, run func(*provisioning.Context) error) provisioning.Phase {
		return fakePhase{name: name, journal: j, run: run}
	}

	BeforeEach(func() {
		j = &journal{}
		cfg = testConfig(true)
		r = NewReconciler(cfg, feature.Gates{}, Backends{Observer: silentObserver{}})
	})

	Context("default phase lists", func() {
		It("orders the full entry point from VMs to GitOps", func() {
			Expect(r.PhaseNames(config.ScopeFull)).To(Equal([]string{
				"provisioning", "os-prep", "control-plane", "workers",
				"network", "storage-gpu", "gitops-platform", "gitops",
			}))
		})

		It("runs only the gitops phase for the reduced entry point", func() {
			Expect(r.PhaseNames(config.ScopeGitOps)).To(Equal([]string{"gitops"}))
		})
	})

	Context("Full", func() {
		It("runs every phase in order and converges", func() {
			r.FullPhases = []provisioning.Phase{phase("a", nil), phase("b", nil), phase("c", nil)}

			result := r.Full(context.Background())

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(j.ran()).To(Equal([]string{"a", "b", "c"}))
			Expect(result.Scope).To(Equal(config.ScopeFull))
			Expect(result.ExitCode()).To(Equal(ExitConverged))
		})

		It("stops at the first fatal phase", func() {
			r.FullPhases = []provisioning.Phase{
				phase("a", nil),
				phase("b", func(*provisioning.Context) error { return errors.New("boom") }),
				phase("c", nil),
			}

			result := r.Full(context.Background())

			Expect(result.Err).To(MatchError(ContainSubstring("b phase failed: boom")))
			Expect(j.ran()).To(Equal([]string{"a", "b"}))
			Expect(result.ExitCode()).To(Equal(ExitFatal))
		})

		It("reports non-fatal failures with exit code 2", func() {
			r.FullPhases = []provisioning.Phase{
				phase("storage-gpu", func(ctx *provisioning.Context) error {
					ctx.Report.Record(reconcile.Outcome{
						Phase: "storage-gpu", Kind: "Chart", Target: "storage",
						Status: reconcile.StatusFailed, Subsystem: feature.SubsystemStorage,
						Err: &reconcile.OptionalSubsystemFailure{Subsystem: feature.SubsystemStorage, Err: errors.New("nfs down")},
					})
					return nil
				}),
				phase("gitops", nil),
			}

			result := r.Full(context.Background())

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(j.ran()).To(Equal([]string{"storage-gpu", "gitops"}))
			Expect(result.Report.Failures()).To(HaveLen(1))
			Expect(result.ExitCode()).To(Equal(ExitDegraded))
		})

		It("returns the kubeconfig fetched during the run", func() {
			r.FullPhases = []provisioning.Phase{
				phase("control-plane", func(ctx *provisioning.Context) error {
					ctx.State.SetKubeconfig([]byte("apiVersion: v1"))
					return nil
				}),
			}

			Expect(r.Full(context.Background()).Kubeconfig).To(Equal([]byte("apiVersion: v1")))
		})

		It("refuses to run without infrastructure configuration", func() {
			r = NewReconciler(testConfig(false), feature.Gates{}, Backends{Observer: silentObserver{}})
			r.FullPhases = []provisioning.Phase{phase("a", nil)}

			result := r.Full(context.Background())

			Expect(result.Err).To(MatchError(ErrNoInfrastructure))
			Expect(j.ran()).To(BeEmpty())
			Expect(result.ExitCode()).To(Equal(ExitFatal))
		})

		It("treats an interrupted run as fatal", func() {
			ctx, cancel := context.WithCancel(context.Background())
			r.FullPhases = []provisioning.Phase{
				phase("a", func(*provisioning.Context) error {
					cancel()
					return nil
				}),
			}

			result := r.Full(ctx)

			Expect(result.Err).To(MatchError(context.Canceled))
			Expect(result.ExitCode()).To(Equal(ExitFatal))
		})
	})

	Context("GitOpsOnly", func() {
		It("runs without infrastructure configuration", func() {
			r = NewReconciler(testConfig(false), feature.Gates{}, Backends{Observer: silentObserver{}})
			r.GitOpsPhases = []provisioning.Phase{phase("gitops", nil)}

			result := r.GitOpsOnly(context.Background())

			Expect(result.Err).NotTo(HaveOccurred())
			Expect(result.Scope).To(Equal(config.ScopeGitOps))
			Expect(j.ran()).To(Equal([]string{"gitops"}))
		})
	})
})

var _ = Describe("NewBackends", func() {
	It("builds no host backends for the GitOps scope", func() {
		b, err := NewBackends(testConfig(false), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(b.Hypervisor).To(BeNil())
		Expect(b.Hosts).To(BeNil())
		Expect(b.NewKubeClient).NotTo(BeNil())
	})

	It("fails when the SSH key cannot be read", func() {
		cfg := testConfig(true)
		cfg.Infra.SSH = config.SSHConfig{User: "ops", PrivateKeyPath: "/nonexistent/id_ed25519"}

		_, err := NewBackends(cfg, nil)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Result", func() {
	DescribeTable("ExitCode",
		func(result Result, want int) {
			Expect(result.ExitCode()).To(Equal(want))
		},
		Entry("converged", Result{Report: reconcile.NewReport()}, ExitConverged),
		Entry("fatal", Result{Report: reconcile.NewReport(), Err: errors.New("x")}, ExitFatal),
		Entry("no report", Result{}, ExitConverged),
	)
})
