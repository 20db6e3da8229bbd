// Package reconcile is the diff-then-apply core shared by every resource
// kind.
//
// Inspectors produce [Observed] values, [Decide] turns desired plus observed
// into an [ActionType], and the resulting [Action]s are collected into a
// [Plan]. The [Executor] applies a plan: actions on the same target run in
// order, independent targets run in parallel up to a bound, and every result
// lands in a [Report] as an [Outcome]. A failure on one target never stops
// work on another.
package reconcile
