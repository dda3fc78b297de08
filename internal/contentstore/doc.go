// Package contentstore reads and patches tip and video resource documents in
// the Sanity content lake.
//
// Reads go through the GROQ query endpoint with document ids bound as query
// parameters. Writes go through the mutate endpoint; a video resource patch
// sets the Mux identifiers and the processing state in one mutation so the
// document never carries an asset without the state advance.
package contentstore
