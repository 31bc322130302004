package retriever

import (
	"fmt"
	"net/url"
	"strings"

	"reelnotes/internal/services"
)

// Platform identifies the hosting service of a submitted URL.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformReddit    Platform = "reddit"
	PlatformGeneric   Platform = "generic"
)

var platformHosts = []struct {
	platform Platform
	domains  []string
}{
	{PlatformYouTube, []string{"youtube.com", "youtu.be", "youtube-nocookie.com"}},
	{PlatformInstagram, []string{"instagram.com", "instagr.am"}},
	{PlatformTikTok, []string{"tiktok.com"}},
	{PlatformTwitter, []string{"twitter.com", "x.com"}},
	{PlatformFacebook, []string{"facebook.com", "fb.watch", "fb.com"}},
	{PlatformReddit, []string{"reddit.com", "redd.it"}},
}

// Source is a validated submission URL.
type Source struct {
	URL      *url.URL
	Platform Platform
}

// String returns the normalized URL.
func (s Source) String() string {
	if s.URL == nil {
		return ""
	}
	return s.URL.String()
}

// ParseSource validates raw as an absolute http(s) URL and infers its platform.
func ParseSource(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, services.Wrap(services.ErrUnsupportedSource, "retrieving", "parse url", "url is empty", nil)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return Source{}, services.Wrap(services.ErrUnsupportedSource, "retrieving", "parse url", "url is not valid", err)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return Source{}, services.Wrap(services.ErrUnsupportedSource, "retrieving", "parse url",
			fmt.Sprintf("unsupported scheme %q", parsed.Scheme), nil)
	}
	if parsed.Hostname() == "" {
		return Source{}, services.Wrap(services.ErrUnsupportedSource, "retrieving", "parse url", "url has no host", nil)
	}
	parsed.Scheme = scheme
	return Source{URL: parsed, Platform: DetectPlatform(parsed.Hostname())}, nil
}

// DetectPlatform maps a host name to a known platform, or PlatformGeneric.
func DetectPlatform(host string) Platform {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	for _, entry := range platformHosts {
		for _, domain := range entry.domains {
			if host == domain || strings.HasSuffix(host, "."+domain) {
				return entry.platform
			}
		}
	}
	return PlatformGeneric
}
