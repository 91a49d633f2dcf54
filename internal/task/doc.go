// Package task implements the orchestration core: a priority-ordered queue
// over pending task identifiers and a bounded-concurrency dispatch pool that
// claims tasks, executes them through a service router, and drives their
// status lifecycle.
//
// The queue is an in-memory index over the authoritative status column held
// by the task store. Entries can go stale (e.g. a task cancelled between
// enqueue and dequeue); the queue revalidates every candidate against the
// store on pop and discards entries that are no longer pending.
package task
