package summarize

// Fields are the four summarization outputs persisted on a VideoNote.
type Fields struct {
	Title    string
	Category string
	Summary  string
	Notes    []string
}

// Result is either WellFormed or Fallback.
type Result interface {
	Fields() Fields
	Degraded() bool
	sealed()
}

// WellFormed is a summary produced entirely from model output.
type WellFormed struct {
	Title    string
	Category string
	Summary  string
	Notes    []string
}

func (w WellFormed) Fields() Fields {
	return Fields{Title: w.Title, Category: w.Category, Summary: w.Summary, Notes: w.Notes}
}

func (WellFormed) Degraded() bool { return false }
func (WellFormed) sealed()        {}

// FallbackReason says why the model output was not used.
type FallbackReason string

const (
	ReasonMalformed  FallbackReason = "malformed_output"
	ReasonIncomplete FallbackReason = "incomplete_output"
	ReasonRefused    FallbackReason = "content_policy"
	ReasonNoInput    FallbackReason = "no_input"
)

// Fallback is a record synthesized from the transcript and title hint.
type Fallback struct {
	Reason   FallbackReason
	Detail   string
	Title    string
	Category string
	Summary  string
	Notes    []string
}

func (f Fallback) Fields() Fields {
	return Fields{Title: f.Title, Category: f.Category, Summary: f.Summary, Notes: f.Notes}
}

func (Fallback) Degraded() bool { return true }
func (Fallback) sealed()        {}
