// Package apiclient is the JSON-over-HTTP plumbing shared by the vendor
// clients (content store, video host, transcription).
//
// A Client owns one base URL, a request timeout, a client-side rate limiter,
// and an authorization hook. Responses outside the 2xx range become a
// *StatusError tagged with a services marker so the step runtime can tell a
// retryable failure (429, 5xx, network) from a permanent one (4xx).
package apiclient
