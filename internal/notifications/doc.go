// Package notifications publishes operator notifications for workflow events.
//
// NewService returns an ntfy-backed implementation when a topic URL is
// configured and a no-op otherwise. Each event type can be silenced in the
// notifications config section; silenced events return nil without a request.
package notifications
