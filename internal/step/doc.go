// Package step provides durable, checkpointed step execution for workflow
// runs.
//
// Each step is identified by (run id, step name) in the queue's step log. Do
// consults the log before invoking its function: a completed checkpoint is
// decoded and returned without re-running the side effect, so a run resumed
// after a crash or a retry only re-executes the steps that never committed.
// Failed attempts are retried with exponential backoff until the configured
// budget is exhausted or the error is permanent.
//
// Fire records a best-effort step and runs it on a side goroutine. Its error
// is logged and discarded; Runner.Wait drains in-flight best-effort work.
package step
