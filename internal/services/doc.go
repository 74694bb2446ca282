// Package services defines shared utilities consumed by the pipeline stages
// and external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run identifiers and stage names for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the run outcome taxonomy (validation, conflict, external tool).
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
