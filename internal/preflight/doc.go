// Package preflight provides readiness checks for the binaries, directories
// and upstream services reelnotes depends on.
//
// These checks run in two contexts:
//   - The daemon's /healthz endpoint calls RunLocal, which never leaves the host.
//   - The CLI "reelnotes status" command calls RunAll, which also pings the
//     summarization model with a single attempt.
//
// Checks are independent and run concurrently; results keep a stable order.
package preflight
