package discover

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/mwestcott/sitehound/urlutil"
)

// ExtractRefs parses HTML from the reader and collects candidate URLs from
// <a href>, <form action>, <script src>, <link href>, and
// <meta http-equiv="refresh"> tags. Relative references are resolved against
// baseURL. Non-HTTP schemes are filtered and the result is deduplicated;
// internality is left to the caller.
func ExtractRefs(body io.Reader, baseURL *url.URL) []string {
	tokenizer := html.NewTokenizer(body)
	seen := make(map[string]bool)
	var refs []string

	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		refURL, err := url.Parse(ref)
		if err != nil {
			return
		}
		resolved := baseURL.ResolveReference(refURL).String()
		if !urlutil.IsHTTPScheme(resolved) {
			return
		}
		if !seen[resolved] {
			seen[resolved] = true
			refs = append(refs, resolved)
		}
	}

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			// End of document or parse error; return what we have.
			return refs
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		switch token.Data {
		case "a", "link":
			add(attr(token, "href"))
		case "script":
			add(attr(token, "src"))
		case "form":
			add(attr(token, "action"))
		case "meta":
			if strings.EqualFold(attr(token, "http-equiv"), "refresh") {
				add(metaRefreshURL(attr(token, "content")))
			}
		}
	}
}

// attr returns the value of the named attribute, or "" when absent.
func attr(token html.Token, name string) string {
	for _, a := range token.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// metaRefreshURL pulls the url= component out of a meta-refresh content
// attribute like "5; url=/next".
func metaRefreshURL(content string) string {
	lower := strings.ToLower(content)
	idx := strings.LastIndex(lower, "url=")
	if idx < 0 {
		return ""
	}
	return strings.Trim(content[idx+len("url="):], `'" `)
}
