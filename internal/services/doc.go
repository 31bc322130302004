// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, owning users, and
//     correlation identifiers for logging and tracing.
//   - The failure taxonomy (Kind), its sentinel markers, and the Wrap helper
//     that attaches stage context while keeping the marker classifiable.
//   - Details and KindOf, which flatten any error into a kind, stage, and
//     operator hint so no failure leaves the pipeline unclassified.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
