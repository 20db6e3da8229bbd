package helm

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
)

// DefaultKubeVersion is used when a renderer has no cluster version.
const DefaultKubeVersion = "v1.33.0"

// Renderer renders Helm charts with provided values.
type Renderer struct {
	releaseName string
	namespace   string
	kubeVersion string
}

// NewRenderer creates a renderer for one release. kubeVersion sets the
// capabilities templates see; empty uses DefaultKubeVersion.
func NewRenderer(releaseName, namespace, kubeVersion string) *Renderer {
	if kubeVersion == "" {
		kubeVersion = DefaultKubeVersion
	}
	if !strings.HasPrefix(kubeVersion, "v") {
		kubeVersion = "v" + kubeVersion
	}
	return &Renderer{
		releaseName: releaseName,
		namespace:   namespace,
		kubeVersion: kubeVersion,
	}
}

// RenderFromSpec downloads a chart and renders it with the provided values.
func (r *Renderer) RenderFromSpec(ctx context.Context, spec ChartSpec, values Values) ([]byte, error) {
	loadedChart, err := DownloadChart(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to download chart: %w", err)
	}

	manifests, err := r.renderChart(loadedChart, values)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart %s: %w", spec, err)
	}
	return manifests, nil
}

// RenderFromPath renders a chart from a local filesystem path.
func (r *Renderer) RenderFromPath(chartPath string, values Values) ([]byte, error) {
	loadedChart, err := loadChartFromPath(chartPath)
	if err != nil {
		return nil, err
	}

	manifests, err := r.renderChart(loadedChart, values)
	if err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return manifests, nil
}

// renderChart uses helm engine to render the chart with values.
func (r *Renderer) renderChart(ch *chart.Chart, values Values) ([]byte, error) {
	// Nested defaults from values.yaml survive partial overrides.
	mergedValues := deepMerge(Values(ch.Values), values)
	chartValues := chartutil.Values(mergedValues.ToMap())

	releaseOptions := chartutil.ReleaseOptions{
		Name:      r.releaseName,
		Namespace: r.namespace,
		IsInstall: true,
	}

	capabilities := chartutil.DefaultCapabilities.Copy()
	kv, err := chartutil.ParseKubeVersion(r.kubeVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid kubernetes version %q: %w", r.kubeVersion, err)
	}
	capabilities.KubeVersion = *kv

	valuesToRender, err := chartutil.ToRenderValues(ch, chartValues, releaseOptions, capabilities)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare values: %w", err)
	}

	rendered, err := engine.Render(ch, valuesToRender)
	if err != nil {
		return nil, fmt.Errorf("failed to render templates: %w", err)
	}

	names := make([]string, 0, len(rendered))
	for name := range rendered {
		names = append(names, name)
	}
	sort.Strings(names)

	var combined bytes.Buffer
	for _, name := range names {
		if filepath.Base(name) == "NOTES.txt" {
			continue
		}
		trimmed := strings.TrimSpace(rendered[name])
		if trimmed == "" {
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n---\n")
		}
		combined.WriteString(trimmed)
		combined.WriteString("\n")
	}

	return combined.Bytes(), nil
}
