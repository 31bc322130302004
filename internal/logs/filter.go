package logs

import (
	"encoding/json"
	"strings"
)

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// Filter selects log records. Zero value matches everything.
type Filter struct {
	JobID string
	// MinLevel is one of debug, info, warn, error.
	MinLevel string
}

// Match reports whether line passes the filter. Lines that are not JSON
// records only pass an empty filter.
func (f Filter) Match(line string) bool {
	if f.JobID == "" && f.MinLevel == "" {
		return true
	}
	var record struct {
		Level string `json:"level"`
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return false
	}
	if f.JobID != "" && record.JobID != f.JobID {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToUpper(strings.TrimSpace(f.MinLevel))]
		if !ok {
			return true
		}
		got, ok := levelRank[strings.ToUpper(record.Level)]
		if !ok || got < want {
			return false
		}
	}
	return true
}
