// Package engine implements the goal-dependency scheduling engine: goals are
// named collections of tasks, tasks declare dependencies on the products of
// other tasks, and the round engine orders them into execution rounds so a
// task never runs before the producers of the products it consumes.
//
// The engine enforces ordering only. Abort-on-first-error, interrupt
// handling, and worker teardown are policies layered on top by the run
// lifecycle controller in pkg/runner.
package engine
