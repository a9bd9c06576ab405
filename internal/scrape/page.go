package scrape

import (
	"regexp"
	"strings"
	"sync"
)

var (
	firstURLRe = regexp.MustCompile(`https?://[^\s]+`)
	metaTagRe  = regexp.MustCompile(`(?i)<meta\b[^>]*>`)
	attrRe     = regexp.MustCompile(`(?i)([a-zA-Z][a-zA-Z0-9-]*)\s*=\s*"([^"]*)"`)
)

// FirstURL returns the first well-formed URL substring of text, or "" when
// none is present. Share links are usually pasted inside surrounding prose.
func FirstURL(text string) string {
	return firstURLRe.FindString(text)
}

// MetaContent returns the content attribute of the first <meta> tag whose
// attr attribute (name, property, ...) equals value. Attribute order inside
// the tag does not matter.
func MetaContent(html, attr, value string) string {
	for _, tag := range metaTagRe.FindAllString(html, -1) {
		content := ""
		matched := false
		for _, kv := range attrRe.FindAllStringSubmatch(tag, -1) {
			switch strings.ToLower(kv[1]) {
			case strings.ToLower(attr):
				if kv[2] == value {
					matched = true
				}
			case "content":
				content = kv[2]
			}
		}
		if matched {
			return content
		}
	}
	return ""
}

var classRes sync.Map // class name -> *regexp.Regexp

func classRe(class string) *regexp.Regexp {
	if re, ok := classRes.Load(class); ok {
		return re.(*regexp.Regexp)
	}
	re := regexp.MustCompile(`(?is)<[a-z][a-z0-9]*\b[^>]*class="(?:[^"]*\s)?` +
		regexp.QuoteMeta(class) + `(?:\s[^"]*)?"[^>]*>([^<]*)<`)
	classRes.Store(class, re)
	return re
}

// ClassText returns the trimmed text content of the first element carrying
// the given class, or "" when none exists.
func ClassText(html, class string) string {
	if m := classRe(class).FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ClassTexts returns the trimmed text contents of every element carrying the
// given class, in document order.
func ClassTexts(html, class string) []string {
	var out []string
	for _, m := range classRe(class).FindAllStringSubmatch(html, -1) {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}
