// Package summarize turns a transcript into the structured fields of a
// VideoNote using a JSON-only LLM completion.
//
// Summarize returns a Result, which is either WellFormed (the model produced
// every field) or Fallback (a record synthesized locally because the model
// output was unusable or refused). Rate limiting, credential problems and
// exhausted retries are returned as errors instead; the pipeline fails the
// job on those.
package summarize
