package common

import (
	"net/url"
	"strings"
)

// Schemes accepted for media references and link previews
var allowedSchemes = []string{"http", "https"}

// Hosts that must never be attached as a link (open redirectors, data exfil)
var blockedLinkHosts = []string{
	"localhost",
	"127.0.0.1",
	"0.0.0.0",
	"169.254.169.254",
}

// IsResolvableReference reports whether content is an absolute http(s) URL
// that the client can fetch (object storage URL for image/audio messages)
func IsResolvableReference(content string) bool {
	u, err := url.Parse(strings.TrimSpace(content))
	if err != nil || u.Host == "" {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range allowedSchemes {
		if scheme == s {
			return true
		}
	}
	return false
}

// ValidateLinkURL validates an optional link attached to a message.
// Empty is allowed.
func ValidateLinkURL(link string) error {
	if link == "" {
		return nil
	}
	if !IsResolvableReference(link) {
		return NewValidationError("link_url", "http(s) 주소만 첨부할 수 있습니다")
	}

	u, _ := url.Parse(link)
	host := strings.ToLower(u.Hostname())
	for _, blocked := range blockedLinkHosts {
		if host == blocked {
			return NewValidationError("link_url", "첨부할 수 없는 주소입니다")
		}
	}
	return nil
}
