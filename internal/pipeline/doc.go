// Package pipeline runs one submission through retrieval, extraction,
// transcription, summarization and persistence.
//
// The Orchestrator is an explicit state machine: each state maps to one stage
// call and next() names its successor. Retries live inside the stage adapters
// (see internal/retry); the orchestrator only adds two recovery paths of its
// own, a single re-download when extraction reports corrupt media and a
// bounded retry of the final datastore write. Every temp artifact a run
// acquires is released before Run returns, whatever state it ends in.
package pipeline
