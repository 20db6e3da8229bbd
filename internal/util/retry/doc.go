// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay, and maximum delay. [Poll] waits for a condition
// with a fixed interval and a hard deadline. Every wait in proxk8s goes
// through one of the two so that nothing blocks indefinitely.
package retry
