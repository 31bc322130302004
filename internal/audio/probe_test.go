package audio

import "testing"

func TestProbeResultHelpers(t *testing.T) {
	result := ProbeResult{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", Duration: "12.5"},
			{CodecType: "audio", Duration: "13.0"},
		},
		Format: Format{Size: "1000"},
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 13.0 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}

	result.Format.Duration = "20.25"
	if result.DurationSeconds() != 20.25 {
		t.Fatalf("expected container duration, got %v", result.DurationSeconds())
	}
}

func TestParseFloatRejectsInvalidNumbers(t *testing.T) {
	for _, value := range []string{"", "bad", "NaN", "+Inf"} {
		if got := parseFloat(value); got != 0 {
			t.Errorf("parseFloat(%q) = %v, want 0", value, got)
		}
	}
}
