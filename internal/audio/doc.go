// Package audio turns downloaded media into speech-recognition-ready audio.
//
// Probe wraps ffprobe JSON output; Extractor runs ffmpeg to produce a mono,
// resampled track under a tempfiles handle. Both report content problems as
// MediaCorrupt and a missing binary as an operational misconfiguration so the
// pipeline can tell a bad source apart from a broken host.
package audio
