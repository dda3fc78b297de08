// Package broker consumes upload events from an AMQP queue.
//
// Each delivery carries the same named envelope the HTTP intake accepts.
// Valid events are recorded as pending runs and acknowledged. Malformed
// messages are rejected without requeue so they never loop, while store
// failures are nacked with requeue so the event is redelivered once the
// store recovers. The consumer reconnects with exponential backoff until its
// context is cancelled.
package broker
