// Package workflow drives pending runs through their registered handlers.
//
// The Manager starts a fixed pool of workers. Each worker reclaims runs whose
// heartbeat went stale, claims the oldest pending run for a registered
// workflow, and executes it with a step.Runner bound to the run's step log.
// A heartbeat loop keeps the claim fresh while the handler works. Output is
// persisted on success; failures are classified through services.Details,
// persisted on the run, and announced via the notifier.
//
// Shutdown cancels in-flight handlers and leaves their runs in the running
// state. The daemon returns them to pending on the next start, and the step
// log lets them resume where they stopped.
package workflow
