package retriever

import (
	"errors"
	"os/exec"
	"strings"

	"reelnotes/internal/services"
)

var (
	diskPatterns = []string{
		"no space left on device",
		"disk quota exceeded",
	}
	accessPatterns = []string{
		"private video",
		"video is private",
		"sign in to confirm",
		"login required",
		"log in to",
		"you need to log in",
		"age-restricted",
		"age restricted",
		"inappropriate for some users",
		"members-only",
		"join this channel",
		"http error 403",
		"403: forbidden",
		"not available in your country",
		"geo restrict",
		"blocked it in your country",
		"confirm you're not a bot",
		"confirm you’re not a bot",
	}
	unsupportedPatterns = []string{
		"unsupported url",
		"is not a valid url",
		"http error 404",
		"video unavailable",
		"has been removed",
		"no video formats found",
		"does not exist",
		"this post is no longer available",
	}
	rateLimitPatterns = []string{
		"http error 429",
		"too many requests",
	}
)

// classify maps a failed yt-dlp run onto the failure taxonomy. Unknown
// failures are treated as transient so they get a bounded retry.
func classify(stderr string, runErr error) error {
	if errors.Is(runErr, exec.ErrNotFound) {
		return services.Wrap(services.ErrConfiguration, "retrieving", "yt-dlp", "yt-dlp binary not found", runErr)
	}
	lower := strings.ToLower(stderr)
	detail := lastErrorLine(stderr)
	switch {
	case containsAny(lower, diskPatterns):
		return services.Wrap(services.ErrConfiguration, "retrieving", "yt-dlp", "temp disk full: "+detail, runErr)
	case containsAny(lower, accessPatterns):
		return services.Wrap(services.ErrAccessDenied, "retrieving", "yt-dlp", detail, runErr)
	case containsAny(lower, unsupportedPatterns):
		return services.Wrap(services.ErrUnsupportedSource, "retrieving", "yt-dlp", detail, runErr)
	case containsAny(lower, rateLimitPatterns):
		return services.Wrap(services.ErrRateLimited, "retrieving", "yt-dlp", detail, runErr)
	default:
		return services.Wrap(services.ErrTransient, "retrieving", "yt-dlp", detail, runErr)
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// lastErrorLine picks the most specific line of yt-dlp output for messages.
func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return "yt-dlp failed"
}
