package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"three candidates picks second", []string{"v1", "v2", "v3"}, "v2"},
		{"two candidates picks second", []string{"570", "550"}, "550"},
		{"single candidate", []string{"v1"}, "v1"},
		{"empty uses fallback", nil, "535"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Select(tt.candidates, "535"))
		})
	}
}

func TestSortCandidates(t *testing.T) {
	t.Parallel()

	got := SortCandidates([]string{
		"nvidia-driver-535",
		"nvidia-driver-570",
		"nvidia-driver-550-server",
		"nvidia-driver-550",
		"nvidia-driver-570",
		"nvidia-driver-open",
		"libnvidia-gl-550",
		"nvidia-driver-470",
	}, "nvidia-driver-")

	assert.Equal(t, []string{"570", "550", "535", "470"}, got)
	assert.Empty(t, SortCandidates(nil, "nvidia-driver-"))
}
