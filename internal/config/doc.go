// Package config resolves the desired state of a cluster from a flat
// key/value source.
//
// The source is the union of an optional .env file and the process
// environment (environment wins). [Resolve] decodes it into an immutable
// [Config] and reports every missing required key in a single
// [MissingConfigurationError] and every malformed value in a single
// [InvalidConfigurationError]. There are no implicit defaults for required
// values and no coercion beyond the documented formats.
//
// Keys that only matter to an optional subsystem (NFS storage, GPU
// passthrough) are kept as raw values here and validated by the feature
// gate, so that a disabled subsystem can never fail resolution.
package config
