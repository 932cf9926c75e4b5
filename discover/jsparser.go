package discover

import (
	"regexp"
	"sort"
)

// Regex families mined from JavaScript bodies. Each pattern's first capture
// group is the candidate endpoint.
var endpointPatterns = []*regexp.Regexp{
	// Quoted paths with an interesting extension.
	regexp.MustCompile(`(?i)["']([/a-zA-Z0-9_\-./]+\.(?:php|jsp|aspx|html|json|xml|api))["']`),
	// fetch() calls.
	regexp.MustCompile(`(?i)fetch\(["']([^"']+)["']`),
	// axios verb calls.
	regexp.MustCompile(`(?i)axios\.(?:get|post|put|delete|patch)\(["']([^"']+)["']`),
	// XMLHttpRequest open calls.
	regexp.MustCompile(`(?i)XMLHttpRequest\(\).*?open\(["'](?:GET|POST)["'],\s*["']([^"']+)["']`),
	// Quoted paths containing an API-ish segment.
	regexp.MustCompile(`(?i)["']([/a-zA-Z0-9_\-./]+/(?:api|v\d+|admin|users|data|config)[/a-zA-Z0-9_\-./]*)["']`),
	// Leading-slash paths in string literals.
	regexp.MustCompile(`(?i)(?:^|["'])\s*(/[a-zA-Z0-9_\-./]+)\s*(?:["']|$)`),
}

var staticAssetPattern = regexp.MustCompile(`(?i)\.jpg|\.png|\.gif|\.css|\.woff`)

// ExtractEndpoints mines a JavaScript body for candidate endpoint paths.
// Accepted endpoints start with "/", are 2-499 characters long, and do not
// look like static assets. The result is sorted and deduplicated.
func ExtractEndpoints(jsContent string) []string {
	seen := make(map[string]bool)
	for _, pattern := range endpointPatterns {
		for _, match := range pattern.FindAllStringSubmatch(jsContent, -1) {
			endpoint := match[1]
			if validEndpoint(endpoint) {
				seen[endpoint] = true
			}
		}
	}

	endpoints := make([]string, 0, len(seen))
	for ep := range seen {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	return endpoints
}

// ExtractEndpointsFromFiles mines every JS body in the map and merges the
// results into one sorted, deduplicated list.
func ExtractEndpointsFromFiles(jsFiles map[string]string) []string {
	seen := make(map[string]bool)
	for _, content := range jsFiles {
		for _, ep := range ExtractEndpoints(content) {
			seen[ep] = true
		}
	}
	endpoints := make([]string, 0, len(seen))
	for ep := range seen {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	return endpoints
}

func validEndpoint(endpoint string) bool {
	if len(endpoint) < 2 || len(endpoint) >= 500 {
		return false
	}
	if endpoint[0] != '/' {
		return false
	}
	if endpoint == "//" {
		return false
	}
	return !staticAssetPattern.MatchString(endpoint)
}
