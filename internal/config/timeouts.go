package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Timeouts holds all configurable wait and retry ceilings.
// These values can be customized via the configuration source.
type Timeouts struct {
	VMCreate          time.Duration // Timeout for a hypervisor create/start task
	GuestIP           time.Duration // Timeout for the guest agent to report an address
	GuestIPPoll       time.Duration // Interval between guest agent polls
	SSHReady          time.Duration // Timeout for a freshly booted host to accept SSH
	Rollout           time.Duration // Timeout for a workload rollout to become ready
	PluginPod         time.Duration // Timeout for the GPU device plugin pod to schedule
	NodeRegister      time.Duration // Timeout for a joined kubelet to register its Node
	PollInterval      time.Duration // Interval between readiness polls
	RetryMaxAttempts  int           // Maximum retry attempts for an unreachable backend
	RetryInitialDelay time.Duration // Initial delay between backend retries
}

// LoadTimeouts loads timeout configuration from the process environment.
// If a variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - PROXK8S_TIMEOUT_VM_CREATE (default: 10m)
//   - PROXK8S_TIMEOUT_GUEST_IP (default: 10m)
//   - PROXK8S_GUEST_IP_POLL (default: 60s)
//   - PROXK8S_TIMEOUT_SSH_READY (default: 5m)
//   - PROXK8S_TIMEOUT_ROLLOUT (default: 10m)
//   - PROXK8S_TIMEOUT_GPU_PLUGIN (default: 5m)
//   - PROXK8S_TIMEOUT_NODE_REGISTER (default: 3m)
//   - PROXK8S_POLL_INTERVAL (default: 10s)
//   - PROXK8S_RETRY_MAX_ATTEMPTS (default: 5)
//   - PROXK8S_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	source := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			source[k] = v
		}
	}
	return timeoutsFrom(source)
}

func timeoutsFrom(source map[string]string) *Timeouts {
	return &Timeouts{
		VMCreate:          parseDuration(source, "PROXK8S_TIMEOUT_VM_CREATE", 10*time.Minute),
		GuestIP:           parseDuration(source, "PROXK8S_TIMEOUT_GUEST_IP", 10*time.Minute),
		GuestIPPoll:       parseDuration(source, "PROXK8S_GUEST_IP_POLL", 60*time.Second),
		SSHReady:          parseDuration(source, "PROXK8S_TIMEOUT_SSH_READY", 5*time.Minute),
		Rollout:           parseDuration(source, "PROXK8S_TIMEOUT_ROLLOUT", 10*time.Minute),
		PluginPod:         parseDuration(source, "PROXK8S_TIMEOUT_GPU_PLUGIN", 5*time.Minute),
		NodeRegister:      parseDuration(source, "PROXK8S_TIMEOUT_NODE_REGISTER", 3*time.Minute),
		PollInterval:      parseDuration(source, "PROXK8S_POLL_INTERVAL", 10*time.Second),
		RetryMaxAttempts:  parseInt(source, "PROXK8S_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration(source, "PROXK8S_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from the source.
// If the key is not set or parsing fails, the default value is returned.
func parseDuration(source map[string]string, key string, defaultVal time.Duration) time.Duration {
	val := source[key]
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from the source.
// If the key is not set or parsing fails, the default value is returned.
func parseInt(source map[string]string, key string, defaultVal int) int {
	val := source[key]
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

// FastTimeouts returns millisecond-scale ceilings for tests.
func FastTimeouts() *Timeouts {
	return &Timeouts{
		VMCreate:          time.Second,
		GuestIP:           time.Second,
		GuestIPPoll:       5 * time.Millisecond,
		SSHReady:          time.Second,
		Rollout:           time.Second,
		PluginPod:         time.Second,
		NodeRegister:      200 * time.Millisecond,
		PollInterval:      5 * time.Millisecond,
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
	}
}
