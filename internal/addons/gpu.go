package addons

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/imamik/proxk8s/internal/addons/helm"
	"github.com/imamik/proxk8s/internal/addons/k8sclient"
	"github.com/imamik/proxk8s/internal/feature"
	"github.com/imamik/proxk8s/internal/reconcile"
	"github.com/imamik/proxk8s/internal/util/labels"
	"github.com/imamik/proxk8s/internal/util/retry"
)

const (
	gpuNamespace = "nvidia-device-plugin"
	// PluginSelector matches the device plugin pods.
	PluginSelector = "app.kubernetes.io/name=nvidia-device-plugin"
	// PluginKind is the reconcile kind of the plugin scheduling check.
	PluginKind = "DevicePlugin"
)

// GPUChart returns the NVIDIA device plugin, scheduled on accelerator nodes.
func GPUChart() (Chart, error) {
	c, err := chart("nvidia-device-plugin", "nvidia-device-plugin", gpuNamespace)
	if err != nil {
		return Chart{}, err
	}
	c.Subsystem = feature.SubsystemGPU
	c.Values = helm.Values{
		"nodeSelector": helm.NodeSelector(labels.KeyAccelerator, labels.AcceleratorNVIDIA),
		"gfd": helm.Values{
			"enabled": false,
		},
	}
	return c, nil
}

// PluginScheduling plans a wait until a plugin pod is Ready on every GPU
// node. It is a no-op when they already are.
func PluginScheduling(ctx context.Context, client k8sclient.Client, gpu feature.GPUSettings, interval, timeout time.Duration) reconcile.Action {
	want := len(gpu.Devices)
	running, err := client.RunningPods(ctx, gpuNamespace, PluginSelector)
	if err != nil {
		running = 0
	}

	action := reconcile.ActionNoop
	if running < want {
		action = reconcile.ActionCreate
	}
	return reconcile.Action{
		Kind:      PluginKind,
		Target:    feature.SubsystemGPU,
		Name:      "nvidia-device-plugin",
		Type:      action,
		Desired:   strconv.Itoa(want) + " ready",
		Observed:  strconv.Itoa(running) + " ready",
		Subsystem: feature.SubsystemGPU,
		Apply: func(ctx context.Context) error {
			err := retry.Poll(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
				n, err := client.RunningPods(ctx, gpuNamespace, PluginSelector)
				if err != nil {
					return false, nil
				}
				return n >= want, nil
			})
			if err != nil {
				return fmt.Errorf("device plugin pods not scheduled on %d GPU nodes: %w", want, err)
			}
			return nil
		},
	}
}
