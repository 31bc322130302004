// Package daemon coordinates the long-running reelnotes process.
//
// It wires configuration, the note store and the pipeline orchestrator into a
// single lifecycle with flock-based locking to prevent multiple instances. The
// daemon hosts the HTTP API that accepts submissions and lists notes, and a
// periodic sweep that reclaims temp artifacts orphaned by crashed runs.
//
// Keep orchestration logic here: pipeline stages live in their own packages
// while the daemon focuses on startup, shutdown and the request boundary.
package daemon
