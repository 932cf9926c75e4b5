package inspect

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// repeatedClassThreshold is the count at which a CSS class is reported as a
// repeated component.
const repeatedClassThreshold = 5

// DetectStructure parses a page snapshot and records its structural
// features: landmark presence, heavily repeated CSS classes, and broken
// link/image candidates. An unparseable snapshot yields a zero Structure.
func DetectStructure(html string) Structure {
	var s Structure
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return s
	}

	s.HasHeader = doc.Find("header").Length() > 0
	s.HasFooter = doc.Find("footer").Length() > 0
	s.HasNav = doc.Find("nav").Length() > 0

	classCounts := make(map[string]int)
	doc.Find("[class]").Each(func(_ int, sel *goquery.Selection) {
		classes, _ := sel.Attr("class")
		for _, class := range strings.Fields(classes) {
			classCounts[class]++
		}
	})
	for class, count := range classCounts {
		if count >= repeatedClassThreshold {
			s.RepeatedClasses = append(s.RepeatedClasses, class)
		}
	}
	sort.Strings(s.RepeatedClasses)

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		switch {
		case !ok || strings.TrimSpace(src) == "":
			s.BrokenImages = append(s.BrokenImages, "img with missing src")
		case strings.HasPrefix(src, "data:"):
			// Inline images cannot 404.
		case strings.Contains(src, "placeholder"):
			s.BrokenImages = append(s.BrokenImages, src)
		}
	})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "#" || href == "javascript:void(0)" {
			s.BrokenLinks = append(s.BrokenLinks, href)
		}
	})

	return s
}
