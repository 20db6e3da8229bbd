package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLabelBuilder(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		clusterName string
	}{
		{"simple cluster name", "my-cluster"},
		{"with numbers", "cluster-01"},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			labels := NewLabelBuilder(tt.clusterName).Build()

			assert.Equal(t, tt.clusterName, labels[KeyCluster])
			assert.Equal(t, ManagedByProxk8s, labels[KeyManagedBy])
		})
	}
}

func TestLabelBuilder_Chaining(t *testing.T) {
	t.Parallel()
	labels := NewLabelBuilder("lab").
		WithRole(RoleWorker).
		Merge(map[string]string{"team": "ml"}).
		Build()

	assert.Equal(t, map[string]string{
		KeyCluster:   "lab",
		KeyManagedBy: ManagedByProxk8s,
		KeyRole:      RoleWorker,
		"team":       "ml",
	}, labels)
}

func TestLabelBuilder_BuildReturnsCopy(t *testing.T) {
	t.Parallel()
	lb := NewLabelBuilder("lab")
	first := lb.Build()
	first["mutated"] = "yes"

	assert.NotContains(t, lb.Build(), "mutated")
}

func TestSelectorForCluster(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "proxk8s.io/cluster=lab", SelectorForCluster("lab"))
}

func TestIsProtected(t *testing.T) {
	t.Parallel()
	tests := []struct {
		key      string
		prefixes []string
		want     bool
	}{
		{"kubernetes.io/hostname", DefaultProtectedPrefixes, true},
		{"node-role.kubernetes.io/control-plane", DefaultProtectedPrefixes, true},
		{"beta.kubernetes.io/arch", DefaultProtectedPrefixes, true},
		{"nvidia.com/gpu.present", DefaultProtectedPrefixes, true},
		{"feature.node.kubernetes.io/pci-10de.present", DefaultProtectedPrefixes, true},
		{"topology.k8s.io/zone", DefaultProtectedPrefixes, true},
		{"proxk8s.io/role", DefaultProtectedPrefixes, false},
		{"notkubernetes.io/foo", DefaultProtectedPrefixes, false},
		{"team", DefaultProtectedPrefixes, false},
		{"example.com/owner", []string{"example.com/own"}, true},
		{"example.com/team", []string{"example.com/own"}, false},
		{"corp.example.com/team", []string{"example.com"}, true},
		{"team", []string{""}, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsProtected(tt.key, tt.prefixes))
		})
	}
}

func TestProtectedPrefixes(t *testing.T) {
	t.Parallel()
	got := ProtectedPrefixes([]string{" example.com ", ""})

	assert.Equal(t, len(DefaultProtectedPrefixes)+1, len(got))
	assert.Equal(t, "example.com", got[len(got)-1])
}

func TestDomain(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "proxk8s.io", Domain("proxk8s.io/role"))
	assert.Equal(t, "", Domain("role"))
}
