package helm

// ChartSpec identifies a chart in a classic Helm repository.
type ChartSpec struct {
	Repository string
	Name       string
	Version    string
}

// String returns "name@version".
func (s ChartSpec) String() string {
	return s.Name + "@" + s.Version
}

// GetChartSpec returns the pinned chart spec for the given addon name.
// The second result is false for an unknown addon.
func GetChartSpec(name string) (ChartSpec, bool) {
	spec, ok := DefaultChartSpecs[name]
	return spec, ok
}
