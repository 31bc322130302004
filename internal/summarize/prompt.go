package summarize

import (
	"fmt"
	"strings"
)

func systemPrompt(maxNotes int) string {
	return fmt.Sprintf(`You summarize short-form video transcripts into study notes.
Respond with a single JSON object and nothing else, using exactly these keys:
  "title": a concise title of at most 80 characters,
  "category": one of %s,
  "summary": one paragraph describing what the video teaches or shows,
  "notes": an array of %d to %d short key points in the order they appear.
If the transcript is empty, work from the title hint alone and keep notes brief.
Never include markdown, code fences or commentary.`,
		strings.Join(Categories, ", "), 3, maxNotes)
}

func userPrompt(transcript, titleHint string) string {
	var b strings.Builder
	if titleHint != "" {
		b.WriteString("Title hint: ")
		b.WriteString(titleHint)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript:\n")
	if transcript == "" {
		b.WriteString("(no speech detected)")
	} else {
		b.WriteString(truncateRunes(transcript, maxPromptRunes))
	}
	return b.String()
}
