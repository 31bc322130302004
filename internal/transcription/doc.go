// Package transcription turns extracted audio into text.
//
// Two providers implement Transcriber: OpenAIProvider posts the file to an
// OpenAI-compatible /audio/transcriptions endpoint, and WhisperXProvider runs
// WhisperX locally through uvx. Adapter sits in front of either one and
// enforces the duration ceiling, normalizes the reported language and logs
// stage timing. Silence is a valid result: an empty Transcript is returned
// without error.
package transcription
