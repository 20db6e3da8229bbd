package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/imamik/proxk8s/internal/reconcile"
)

// File names inside a run directory.
const (
	OutcomesFile   = "outcomes.yaml"
	MetricsFile    = "metrics.prom"
	KubeconfigFile = "kubeconfig"
	HostsDir       = "hosts"
)

const timestampLayout = "20060102T150405Z"

var runDirPattern = regexp.MustCompile(`^\d{8}T\d{6}Z-[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Run is one invocation's artifact directory.
type Run struct {
	ID      string
	Dir     string
	Started time.Time

	mu   sync.Mutex
	logs map[string]*os.File
}

// NewRun removes earlier run directories below base and creates a new one.
func NewRun(base string, now time.Time) (*Run, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if err := wipe(base); err != nil {
		return nil, err
	}

	now = now.UTC()
	id := now.Format(timestampLayout) + "-" + uuid.NewString()
	dir := filepath.Join(base, id)
	if err := os.MkdirAll(filepath.Join(dir, HostsDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	return &Run{ID: id, Dir: dir, Started: now, logs: make(map[string]*os.File)}, nil
}

func wipe(base string) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		return fmt.Errorf("failed to read artifacts directory: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !runDirPattern.MatchString(e.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(base, e.Name())); err != nil {
			return fmt.Errorf("failed to remove previous run %s: %w", e.Name(), err)
		}
	}
	return nil
}

// HostLog returns the transcript writer for node. It never fails: when the
// log cannot be opened the transcript is dropped.
func (r *Run) HostLog(node string) io.Writer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.logs[node]; ok {
		return f
	}
	f, err := os.OpenFile(filepath.Join(r.Dir, HostsDir, node+".log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return io.Discard
	}
	r.logs[node] = f
	return f
}

// Summary is the header of outcomes.yaml.
type Summary struct {
	Run      string                   `yaml:"run"`
	Cluster  string                   `yaml:"cluster"`
	Scope    string                   `yaml:"scope"`
	Started  time.Time                `yaml:"started"`
	Elapsed  string                   `yaml:"elapsed"`
	ExitCode int                      `yaml:"exitCode"`
	Error    string                   `yaml:"error,omitempty"`
	Counts   map[reconcile.Status]int `yaml:"counts"`
	Outcomes []reconcile.Outcome      `yaml:"outcomes"`
}

// NewSummary collects the report into a Summary.
func (r *Run) NewSummary(cluster, scope string, report *reconcile.Report, elapsed string, exitCode int, runErr error) Summary {
	s := Summary{
		Run:      r.ID,
		Cluster:  cluster,
		Scope:    scope,
		Started:  r.Started,
		Elapsed:  elapsed,
		ExitCode: exitCode,
		Counts:   make(map[reconcile.Status]int),
	}
	if report != nil {
		s.Outcomes = report.Outcomes()
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	for _, o := range s.Outcomes {
		s.Counts[o.Status]++
	}
	return s
}

// WriteOutcomes writes outcomes.yaml.
func (r *Run) WriteOutcomes(s Summary) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode outcomes: %w", err)
	}
	return r.write(OutcomesFile, b, 0o644)
}

// MetricsWriter writes a metrics registry to a file.
type MetricsWriter interface {
	WriteFile(path string) error
}

// WriteMetrics writes metrics.prom.
func (r *Run) WriteMetrics(m MetricsWriter) error {
	if err := m.WriteFile(filepath.Join(r.Dir, MetricsFile)); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// WriteKubeconfig stores a copy of the admin kubeconfig. Empty input is a
// no-op.
func (r *Run) WriteKubeconfig(kubeconfig []byte) error {
	if len(kubeconfig) == 0 {
		return nil
	}
	return r.write(KubeconfigFile, kubeconfig, 0o600)
}

func (r *Run) write(name string, b []byte, mode os.FileMode) error {
	if err := os.WriteFile(filepath.Join(r.Dir, name), b, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Close flushes and closes the host transcripts.
func (r *Run) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for node, f := range r.logs {
		if err := f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", node, err))
		}
		delete(r.logs, node)
	}
	return errors.Join(errs...)
}

// Uploader copies a directory tree to object storage.
type Uploader interface {
	EnsureBucket(ctx context.Context, bucket string) error
	UploadDir(ctx context.Context, bucket, prefix, dir string) ([]string, error)
}

// Upload copies the run directory to bucket under <cluster>/<run id>/ and
// returns the uploaded keys.
func (r *Run) Upload(ctx context.Context, u Uploader, bucket, cluster string) ([]string, error) {
	if err := u.EnsureBucket(ctx, bucket); err != nil {
		return nil, err
	}
	keys, err := u.UploadDir(ctx, bucket, path.Join(cluster, r.ID), r.Dir)
	if err != nil {
		return keys, fmt.Errorf("failed to upload artifacts: %w", err)
	}
	return keys, nil
}
