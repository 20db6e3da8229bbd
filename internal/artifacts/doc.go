// Package artifacts manages the per-invocation run directory.
//
// Every invocation gets a new directory named <timestamp>-<uuid> below the
// configured artifacts directory. Run directories left by earlier
// invocations are removed first; anything else in the directory is left
// alone. The run directory holds:
//
//	outcomes.yaml     run summary and every recorded outcome
//	metrics.prom      Prometheus text exposition of the run registry
//	hosts/<node>.log  transcript of every remote command per host
//	kubeconfig        admin kubeconfig fetched during the run, if any
//
// When an S3 bucket is configured the finished directory is uploaded
// under <cluster>/<run id>/.
package artifacts
