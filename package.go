// Package cosched provides a single-threaded cooperative task
// scheduler with socket readiness folded into its run loop. Tasks
// suspend only at explicit yield points and are serviced in FIFO
// order.
//
// Key components:
//
//   - Computation: a suspendable unit of work. Go adapts a plain
//     function into one; the function suspends through a *Co.
//
//   - Task: the scheduler's wrapper around one computation. It
//     tracks the value injected on the next resume and whether the
//     computation has started.
//
//   - SystemCall: a value a computation yields to ask the scheduler
//     for a privileged effect (spawn, kill, query its own id, wait
//     for read or write readiness).
//
//   - Scheduler: owns the task table, the ready queue and the
//     wait-sets, and drives the run loop.
//
//   - Poller: the select-style readiness check used by the
//     multiplexer task the scheduler spawns when it runs.
//
//   - Synchronization primitives: Mutex and WaitGroup park tasks
//     outside the ready rotation. Group runs member tasks and
//     collects the first error.
package cosched
