// Package osprep converges the host operating system of every node:
// packages present, kernel modules loaded and persisted, kernel parameters
// set, swap off. GPU nodes additionally get an NVIDIA driver when the GPU
// subsystem is enabled.
package osprep
