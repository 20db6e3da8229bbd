// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunBounded] executes independent operations concurrently with an upper
// bound on parallelism and returns every error, in task order. A failing
// task never cancels its siblings.
package async
