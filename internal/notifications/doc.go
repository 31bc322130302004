// Package notifications delivers job outcome alerts to ntfy.
//
// NewService returns a no-op Service when no topic is configured, so the
// pipeline can notify unconditionally.
package notifications
