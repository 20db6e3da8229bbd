package helm

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/getter"
	"helm.sh/helm/v3/pkg/repo"
)

// CacheDir is where downloaded chart archives are kept between runs.
// Empty means the user cache directory.
var CacheDir = ""

func cacheDir() (string, error) {
	if CacheDir != "" {
		return CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "proxk8s", "charts"), nil
}

// DownloadChart returns the chart for spec, downloading it into the cache
// on first use.
func DownloadChart(ctx context.Context, spec ChartSpec) (*chart.Chart, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chart cache: %w", err)
	}
	cached := filepath.Join(dir, fmt.Sprintf("%s-%s.tgz", spec.Name, spec.Version))
	if _, err := os.Stat(cached); err == nil {
		return loadChartFromPath(cached)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	settings := cli.New()
	chartURL, err := repo.FindChartInRepoURL(
		spec.Repository,
		spec.Name,
		spec.Version,
		"", "", "",
		getter.All(settings),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find chart %s in repo %s: %w", spec, spec.Repository, err)
	}

	u, err := url.Parse(chartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid chart URL %q: %w", chartURL, err)
	}
	g, err := getter.All(settings).ByScheme(u.Scheme)
	if err != nil {
		return nil, err
	}
	data, err := g.Get(chartURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download chart %s: %w", spec, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chart cache: %w", err)
	}
	if err := writeAtomic(cached, data); err != nil {
		return nil, err
	}
	return loadChartFromPath(cached)
}

func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chart-*")
	if err != nil {
		return fmt.Errorf("failed to cache chart: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to cache chart: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to cache chart: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// loadChartFromPath loads a chart archive or directory.
func loadChartFromPath(path string) (*chart.Chart, error) {
	ch, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart from %s: %w", path, err)
	}
	return ch, nil
}
