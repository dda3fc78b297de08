// Package ingest coordinates the "tip video uploaded" workflow.
//
// One upload event drives seven steps in strict order: announce the new video
// resource (best effort), fetch the tip when the event names one, fetch the
// video resource, create the Mux asset, patch the video resource with the
// asset identifiers and the processing state, attach the video resource to
// the tip when the tip has no resources yet, and order the transcript.
//
// Every step except the announcement is a durable step.Do checkpoint, so a
// retried run resumes at the first step that never committed. The aggregate
// Result is what the run manager stores as the run output.
package ingest
