package discover

import (
	"sort"
	"strings"
)

// DefaultWordlist returns the built-in list of common admin/ops path words
// used by the brute-force technique.
func DefaultWordlist() []string {
	return []string{
		"admin", "login", "dashboard", "api", "test", "backup", "dev", "old",
		"uploads", "download", "files", "images", "assets", "js", "css",
		"config", "settings", "user", "users", "account", "accounts",
		"profile", "search", "index", "home", "about", "contact", "help",
		"support", "blog", "news", "products", "services", "docs",
		"documentation", "api/v1", "api/v2", "auth", "register", "logout",
		"password", "reset", "forgot", "verify", "confirm", "activate",
		"sitemap", "robots", "favicon", ".git", ".env", ".htaccess",
		"web.config", "package.json", "wp-admin", "wp-login", "admin.php",
		"xmlrpc.php", "shell", "cmd", "execute", "upload", "download",
		"file", "folder", "directory", "list", "browse", "view",
	}
}

var bruteforceExtensions = []string{".php", ".html", ".jsp", ".aspx", ".json", ".xml", ".api"}

// BruteForcer expands a wordlist into candidate paths.
type BruteForcer struct {
	wordlist []string
}

// NewBruteForcer creates a BruteForcer. A nil wordlist selects the default.
func NewBruteForcer(wordlist []string) *BruteForcer {
	if len(wordlist) == 0 {
		wordlist = DefaultWordlist()
	}
	return &BruteForcer{wordlist: wordlist}
}

// GeneratePaths expands the wordlist into candidate paths: the bare word,
// each extension, a trailing-slash variant, and the /api/, /v1/, /v2/
// prefixes. The result is sorted and deduplicated.
func (b *BruteForcer) GeneratePaths() []string {
	seen := make(map[string]bool)
	for _, word := range b.wordlist {
		seen["/"+word] = true
		for _, ext := range bruteforceExtensions {
			seen["/"+word+ext] = true
		}
		seen["/"+word+"/"] = true
		seen["/api/"+word] = true
		seen["/v1/"+word] = true
		seen["/v2/"+word] = true
	}

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// GenerateURLs joins the generated paths onto the target origin.
func (b *BruteForcer) GenerateURLs(origin string) []string {
	origin = strings.TrimRight(origin, "/")
	paths := b.GeneratePaths()
	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		urls = append(urls, origin+p)
	}
	return urls
}
