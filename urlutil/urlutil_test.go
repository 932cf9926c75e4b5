package urlutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "fragment stripping",
			input:    "https://example.com/page#section",
			expected: "https://example.com/page",
		},
		{
			name:     "default https port dropped",
			input:    "HTTPS://Example.com:443/a#frag",
			expected: "https://Example.com/a",
		},
		{
			name:     "default http port dropped",
			input:    "http://example.com:80/a",
			expected: "http://example.com/a",
		},
		{
			name:     "non-default port preserved",
			input:    "https://example.com:8443/a",
			expected: "https://example.com:8443/a",
		},
		{
			name:     "scheme defaults to https",
			input:    "example.com/admin",
			expected: "https://example.com/admin",
		},
		{
			name:     "empty path becomes root",
			input:    "https://example.com",
			expected: "https://example.com/",
		},
		{
			name:     "query params preserved",
			input:    "https://example.com/search?q=foo&page=2",
			expected: "https://example.com/search?q=foo&page=2",
		},
		{
			name:     "scheme lowercased path case kept",
			input:    "HTTPS://example.com/Page",
			expected: "https://example.com/Page",
		},
		{
			name:    "empty string returns error",
			input:   "",
			wantErr: true,
		},
		{
			name:    "fragment only returns error",
			input:   "#top",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("Normalize() = %q, want %q", got, tt.expected)
			}
		})
	}
}

// Normalization must be idempotent: a second pass over an already-normalized
// URL yields an identical string.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.com:443/a#frag",
		"example.com",
		"http://example.com:80/path?q=1",
		"https://sub.example.com/a/b/",
	}
	for _, input := range inputs {
		once, err := Normalize(input)
		if err != nil {
			t.Fatalf("Normalize(%q) error: %v", input, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(Normalize(%q)) error: %v", input, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", input, once, twice)
		}
	}
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		ref      string
		expected string
	}{
		{"relative path", "https://example.com/dir/page", "../other", "https://example.com/other"},
		{"absolute path", "https://example.com/dir/page", "/admin", "https://example.com/admin"},
		{"absolute url", "https://example.com/", "https://example.com/x#y", "https://example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeRef(tt.base, tt.ref)
			if err != nil {
				t.Fatalf("NormalizeRef() error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeRef() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsInternal(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		target string
		want   bool
	}{
		{"same host", "https://example.com/x", "example.com", true},
		{"subdomain", "https://a.example.com/x", "example.com", true},
		{"www stripped", "https://www.example.com/", "example.com", true},
		{"target with scheme", "https://example.com/", "https://example.com", true},
		{"external host", "https://evil.com", "example.com", false},
		{"suffix but not subdomain", "https://notexample.com", "example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsInternal(tt.url, tt.target); got != tt.want {
				t.Errorf("IsInternal(%q, %q) = %v, want %v", tt.url, tt.target, got, tt.want)
			}
		})
	}
}

func TestStatusTag(t *testing.T) {
	if got := StatusTag(200); got != "[200]" {
		t.Errorf("StatusTag(200) = %q", got)
	}
	if got := StatusTag(0); got != "[UNKNOWN]" {
		t.Errorf("StatusTag(0) = %q", got)
	}
}

func TestOrigin(t *testing.T) {
	got, err := Origin("example.com/some/path?q=1")
	if err != nil {
		t.Fatalf("Origin() error: %v", err)
	}
	if got != "https://example.com" {
		t.Errorf("Origin() = %q, want %q", got, "https://example.com")
	}
}

func TestDedupe(t *testing.T) {
	in := []string{"a", "b", "a", "", "c", "b"}
	got := Dedupe(in)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Dedupe() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Dedupe()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
