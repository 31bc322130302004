// Package main hosts the reelnotes CLI.
//
// The Cobra command tree submits videos through the pipeline in-process,
// lists stored notes, cleans temp artifacts, runs preflight checks and
// scaffolds configuration. The long-running HTTP service is started with
// `reelnotes serve` or the standalone reelnotesd binary.
package main
