// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and can be tested independently of the
// CLI framework; external dependencies are package variables replaced in
// tests.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	ctrlzap "sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/imamik/proxk8s/internal/artifacts"
	"github.com/imamik/proxk8s/internal/config"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/orchestration"
	"github.com/imamik/proxk8s/internal/platform/s3"
	"github.com/imamik/proxk8s/internal/provisioning"
	"github.com/imamik/proxk8s/internal/ui/tui"
)

// Log formats accepted by --log-format.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// RunOptions are the flags shared by apply and gitops.
type RunOptions struct {
	EnvFile string
	// EnvFileRequired is set when --env-file was given explicitly.
	EnvFileRequired bool
	LogFormat       string
	NoTUI           bool
}

// ExitError carries the process exit code of a finished run.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Reconciler is the orchestration surface used by the handlers.
type Reconciler interface {
	Full(ctx context.Context) orchestration.Result
	GitOpsOnly(ctx context.Context) orchestration.Result
	PhaseNames(scope config.Scope) []string
	SetObserver(o provisioning.Observer)
}

// Factory function variables - can be replaced in tests.
var (
	loadConfig    = config.Load
	evaluateGates = feature.Evaluate
	newBackends   = orchestration.NewBackends
	newReconciler = func(cfg *config.Config, gates feature.Gates, b orchestration.Backends) Reconciler {
		return orchestration.NewReconciler(cfg, gates, b)
	}
	newUploader = func(a config.ArtifactsConfig) (artifacts.Uploader, error) {
		return s3.NewClient(a.S3Endpoint, a.S3Region, a.S3AccessKey, a.S3SecretKey)
	}
	runTUI     = tui.Run
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	}
	now = time.Now
)

// Apply runs the full entry point.
func Apply(ctx context.Context, opts RunOptions) error {
	return execute(ctx, config.ScopeFull, opts)
}

// GitOps runs the GitOps-only entry point.
func GitOps(ctx context.Context, opts RunOptions) error {
	return execute(ctx, config.ScopeGitOps, opts)
}

func execute(ctx context.Context, scope config.Scope, opts RunOptions) error {
	// Configuration problems are reported before any backend is contacted.
	cfg, err := loadConfig(opts.EnvFile, opts.EnvFileRequired, scope)
	if err != nil {
		return &ExitError{Code: orchestration.ExitFatal, Err: err}
	}
	gates, err := evaluateGates(cfg.Infra)
	if err != nil {
		return &ExitError{Code: orchestration.ExitFatal, Err: err}
	}

	run, err := artifacts.NewRun(cfg.Artifacts.Dir, now())
	if err != nil {
		return &ExitError{Code: orchestration.ExitFatal, Err: err}
	}
	defer func() { _ = run.Close() }()

	backends, err := newBackends(cfg, run.HostLog)
	if err != nil {
		return &ExitError{Code: orchestration.ExitFatal, Err: err}
	}
	r := newReconciler(cfg, gates, backends)

	result := reconcile(ctx, r, cfg, scope, opts)
	finish(ctx, run, cfg, result, opts)

	if code := result.ExitCode(); code != orchestration.ExitConverged {
		err := result.Err
		if err == nil {
			err = errors.New("completed with non-fatal failures; see " + run.Dir)
		}
		return &ExitError{Code: code, Err: err}
	}
	return nil
}

func reconcile(ctx context.Context, r Reconciler, cfg *config.Config, scope config.Scope, opts RunOptions) orchestration.Result {
	entry := r.Full
	if scope == config.ScopeGitOps {
		entry = r.GitOpsOnly
	}

	if opts.LogFormat == LogFormatJSON {
		logger := ctrlzap.New(ctrlzap.WriteTo(os.Stderr), ctrlzap.JSONEncoder())
		r.SetObserver(provisioning.NewLogrObserver(logger.WithName("proxk8s")))
		return entry(ctx)
	}

	if opts.NoTUI || !isTerminal() {
		r.SetObserver(provisioning.NewConsoleObserver())
		return entry(ctx)
	}

	var result orchestration.Result
	model := tui.NewModel(cfg.Cluster.Name, scope.String(), r.PhaseNames(scope))
	err := runTUI(ctx, model, func(ctx context.Context, observer provisioning.Observer) error {
		r.SetObserver(observer)
		result = entry(ctx)
		return result.Err
	})
	if err != nil && result.Err == nil {
		result.Err = err
	}
	return result
}

// finish writes the run artifacts, uploads them when configured and prints
// the summary. Artifact problems are logged and never change the exit code.
func finish(ctx context.Context, run *artifacts.Run, cfg *config.Config, result orchestration.Result, opts RunOptions) {
	if err := run.WriteKubeconfig(result.Kubeconfig); err != nil {
		log.Printf("Warning: %v", err)
	}
	if result.Metrics != nil {
		if err := run.WriteMetrics(result.Metrics); err != nil {
			log.Printf("Warning: %v", err)
		}
	}
	summary := run.NewSummary(cfg.Cluster.Name, result.Scope.String(), result.Report,
		provisioning.FormatElapsed(result.Elapsed), result.ExitCode(), result.Err)
	if err := run.WriteOutcomes(summary); err != nil {
		log.Printf("Warning: %v", err)
	}
	if err := run.Close(); err != nil {
		log.Printf("Warning: failed to close host logs: %v", err)
	}

	if cfg.Artifacts.UploadEnabled() {
		upload(ctx, run, cfg)
	}

	if opts.LogFormat == LogFormatText && isTerminal() {
		fmt.Println(tui.RenderSummary(summary, run.Dir))
		return
	}
	log.Printf("Run %s finished in %s with exit code %d (%d outcomes); artifacts in %s",
		run.ID, summary.Elapsed, summary.ExitCode, len(summary.Outcomes), run.Dir)
}

func upload(ctx context.Context, run *artifacts.Run, cfg *config.Config) {
	uploader, err := newUploader(cfg.Artifacts)
	if err != nil {
		log.Printf("Warning: artifact upload skipped: %v", err)
		return
	}
	// The run context may already be cancelled by an interrupt.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()
	keys, err := run.Upload(ctx, uploader, cfg.Artifacts.S3Bucket, cfg.Cluster.Name)
	if err != nil {
		log.Printf("Warning: %v", err)
		return
	}
	log.Printf("Uploaded %d artifacts to s3://%s/%s/%s", len(keys), cfg.Artifacts.S3Bucket, cfg.Cluster.Name, run.ID)
}
