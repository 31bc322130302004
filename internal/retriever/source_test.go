package retriever

import (
	"testing"

	"reelnotes/internal/services"
)

func TestDetectPlatform(t *testing.T) {
	tests := map[string]Platform{
		"www.youtube.com":     PlatformYouTube,
		"m.youtube.com":       PlatformYouTube,
		"youtu.be":            PlatformYouTube,
		"www.instagram.com":   PlatformInstagram,
		"vm.tiktok.com":       PlatformTikTok,
		"x.com":               PlatformTwitter,
		"mobile.twitter.com":  PlatformTwitter,
		"fb.watch":            PlatformFacebook,
		"v.redd.it":           PlatformReddit,
		"old.reddit.com":      PlatformReddit,
		"vimeo.com":           PlatformGeneric,
		"notyoutube.com":      PlatformGeneric,
		"WWW.YOUTUBE.COM.":    PlatformYouTube,
	}
	for host, want := range tests {
		if got := DetectPlatform(host); got != want {
			t.Errorf("DetectPlatform(%q) = %q, want %q", host, got, want)
		}
	}
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("  https://www.youtube.com/shorts/dQw4w9WgXcQ ")
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if src.Platform != PlatformYouTube {
		t.Fatalf("expected youtube, got %q", src.Platform)
	}
	if src.String() != "https://www.youtube.com/shorts/dQw4w9WgXcQ" {
		t.Fatalf("unexpected normalized url %q", src.String())
	}

	for _, raw := range []string{"", "not a url", "ftp://example.com/video", "https://", "mailto:a@b.c"} {
		_, err := ParseSource(raw)
		if services.KindOf(err) != services.KindUnsupportedSource {
			t.Errorf("ParseSource(%q): expected UnsupportedSource, got %v", raw, err)
		}
	}
}
