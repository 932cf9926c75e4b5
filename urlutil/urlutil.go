// Package urlutil provides URL normalization, classification, and
// deduplication primitives shared by the discovery and inspection stages.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Normalize returns the canonical form of a URL:
// - Lowercasing the scheme
// - Defaulting the scheme to https when absent
// - Stripping fragments (#section)
// - Dropping default ports (:443 for https, :80 for http)
// - Defaulting an empty path to "/"
// - Preserving query parameters verbatim
//
// Normalization is idempotent: Normalize(Normalize(u)) == Normalize(u).
// Returns an error if the input is empty or cannot be parsed as a valid URL.
func Normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("cannot normalize empty URL")
	}

	// Strip the fragment up front so "example.com#top" parses cleanly.
	if idx := strings.IndexByte(rawURL, '#'); idx >= 0 {
		rawURL = rawURL[:idx]
	}
	if rawURL == "" {
		return "", errors.New("cannot normalize fragment-only URL")
	}

	// Default scheme.
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") &&
		!strings.HasPrefix(rawURL, "HTTP://") && !strings.HasPrefix(rawURL, "HTTPS://") &&
		!hasScheme(rawURL) {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}
	if parsed.Host == "" {
		return "", errors.New("URL must have a host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Fragment = ""

	// Drop default ports.
	host := parsed.Host
	switch {
	case parsed.Scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	case parsed.Scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	}
	parsed.Host = host

	if parsed.Path == "" {
		parsed.Path = "/"
	}

	return parsed.String(), nil
}

// hasScheme reports whether the raw URL carries any scheme prefix, including
// non-HTTP ones like mailto: or ftp:.
func hasScheme(rawURL string) bool {
	idx := strings.Index(rawURL, "://")
	if idx <= 0 {
		return false
	}
	// Reject "example.com/a://b" style false positives.
	return !strings.ContainsAny(rawURL[:idx], "/?")
}

// NormalizeRef resolves a possibly-relative ref against a base URL and
// normalizes the result. Absolute refs are normalized directly.
func NormalizeRef(base string, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("cannot normalize empty URL")
	}
	if strings.HasPrefix(strings.ToLower(ref), "http") {
		return Normalize(ref)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}
	return Normalize(baseURL.ResolveReference(refURL).String())
}

// ExtractDomain returns the host of a URL with any leading "www." stripped.
// Bare domains without a scheme are accepted.
func ExtractDomain(rawURL string) string {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Host), "www.")
}

// IsInternal reports whether rawURL belongs to the target domain. A URL is
// internal when its host equals the target host or is a subdomain of it.
// "www." is stripped from both sides before comparison.
func IsInternal(rawURL string, target string) bool {
	host := ExtractDomain(rawURL)
	targetHost := ExtractDomain(target)
	if host == "" || targetHost == "" {
		return false
	}
	return host == targetHost || strings.HasSuffix(host, "."+targetHost)
}

// IsValid reports whether the URL parses with an http(s) scheme and a host.
func IsValid(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return (scheme == "http" || scheme == "https") && parsed.Host != ""
}

// IsHTTPScheme reports whether the URL has an http or https scheme.
// Returns false for empty strings, non-HTTP schemes, or unparseable URLs.
func IsHTTPScheme(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// Origin returns "scheme://host" for the given target, defaulting the scheme
// to https for bare domains and discarding any path or query.
func Origin(target string) (string, error) {
	normalized, err := Normalize(target)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", normalized, err)
	}
	return parsed.Scheme + "://" + parsed.Host, nil
}

// StatusTag returns a bracketed status label like "[200]", or "[UNKNOWN]"
// when the status is zero.
func StatusTag(status int) string {
	if status == 0 {
		return "[UNKNOWN]"
	}
	return fmt.Sprintf("[%d]", status)
}

// Dedupe removes duplicate URLs while preserving first-seen order.
func Dedupe(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
