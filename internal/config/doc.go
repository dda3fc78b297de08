// Package config loads, normalizes, and validates tipflow configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides for vendor
// credentials such as SANITY_API_TOKEN and DEEPGRAM_API_KEY. The Config type
// centralizes every knob the daemon and CLI need, so the data directory, the
// vendor endpoints, and the workflow timings are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
