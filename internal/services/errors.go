package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind is the machine-readable failure class surfaced to callers.
type Kind string

const (
	KindUnsupportedSource           Kind = "UnsupportedSource"
	KindAccessDenied                Kind = "AccessDenied"
	KindTransientNetworkFailure     Kind = "TransientNetworkFailure"
	KindRetryExhausted              Kind = "RetryExhausted"
	KindMediaCorrupt                Kind = "MediaCorrupt"
	KindUpstreamRateLimited         Kind = "UpstreamRateLimited"
	KindUpstreamMalformedResponse   Kind = "UpstreamMalformedResponse"
	KindPersistenceFailure          Kind = "PersistenceFailure"
	KindOperationalMisconfiguration Kind = "OperationalMisconfiguration"
	KindCancelled                   Kind = "Cancelled"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrAccessDenied      = errors.New("access denied")
	ErrTransient         = errors.New("transient network failure")
	ErrRetryExhausted    = errors.New("retries exhausted")
	ErrMediaCorrupt      = errors.New("media corrupt")
	ErrRateLimited       = errors.New("upstream rate limited")
	ErrMalformedResponse = errors.New("upstream malformed response")
	ErrPersistence       = errors.New("persistence failure")
	ErrConfiguration     = errors.New("operational misconfiguration")
	ErrCancelled         = errors.New("cancelled")
)

// markerKinds is ordered: RetryExhausted wraps the last transient error, so it
// must be checked before the transient markers it carries.
var markerKinds = []struct {
	marker error
	kind   Kind
}{
	{ErrCancelled, KindCancelled},
	{ErrRetryExhausted, KindRetryExhausted},
	{ErrConfiguration, KindOperationalMisconfiguration},
	{ErrUnsupportedSource, KindUnsupportedSource},
	{ErrAccessDenied, KindAccessDenied},
	{ErrMediaCorrupt, KindMediaCorrupt},
	{ErrPersistence, KindPersistenceFailure},
	{ErrMalformedResponse, KindUpstreamMalformedResponse},
	{ErrRateLimited, KindUpstreamRateLimited},
	{ErrTransient, KindTransientNetworkFailure},
}

var kindHints = map[Kind]string{
	KindUnsupportedSource:           "submit a link from a supported platform",
	KindAccessDenied:                "the video is private, age-restricted or blocked; it cannot be fetched",
	KindTransientNetworkFailure:     "network hiccup; resubmitting usually succeeds",
	KindRetryExhausted:              "upstream kept failing; resubmit later",
	KindMediaCorrupt:                "the downloaded media has no usable audio",
	KindUpstreamRateLimited:         "upstream quota reached; resubmit later",
	KindUpstreamMalformedResponse:   "model output did not match the expected structure",
	KindPersistenceFailure:          "check datastore connectivity and credentials",
	KindOperationalMisconfiguration: "check config file, credentials and installed binaries",
	KindCancelled:                   "the request was abandoned before completion",
}

// StageError carries the stage context of a failure alongside its marker.
type StageError struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *StageError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

func (e *StageError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Cause}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &StageError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a classified failure.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Hint      string
	Retryable bool
	Cause     error
}

// Details extracts classification and stage context from err. The outermost
// StageError wins for stage and message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err), Message: err.Error(), Cause: err}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		details.Stage = stageErr.Stage
		details.Operation = stageErr.Operation
		if stageErr.Message != "" {
			details.Message = stageErr.Message
		}
		if stageErr.Cause != nil {
			details.Cause = stageErr.Cause
		}
	}
	details.Hint = kindHints[details.Kind]
	details.Retryable = IsRetryable(err)
	return details
}

// KindOf classifies err. Errors without a marker are classified by shape so
// callers never see an unclassified failure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, entry := range markerKinds {
		if errors.Is(err, entry.marker) {
			return entry.kind
		}
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransientNetworkFailure
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransientNetworkFailure
	}
	return KindOperationalMisconfiguration
}

// Hint returns the operator guidance associated with a kind.
func Hint(kind Kind) string {
	return kindHints[kind]
}

// IsRetryable reports whether a stage-local retry may change the outcome.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindTransientNetworkFailure, KindUpstreamRateLimited:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
