// Package scrape extracts structured data out of the provider's
// server-rendered share pages. Everything in here is pure string work so it
// can be tested against captured HTML fixtures without network access.
package scrape

import (
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMarkerNotFound is returned when no script on the page yields a
// parseable object for the requested marker.
var ErrMarkerNotFound = errors.New("scrape: router data marker not found")

var scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>(.*?)</script>`)

// RouterData locates the JSON object literal assigned to marker inside one
// of the page's script elements and returns it parsed. Scripts are scanned
// in document order; a script whose capture does not parse is skipped, and
// the last script that yields valid JSON with a loaderData root wins.
func RouterData(html, marker string) (gjson.Result, error) {
	assignRe, err := regexp.Compile(`(?s)` + regexp.QuoteMeta(marker) + `\s*=\s*(\{.*?\});`)
	if err != nil {
		return gjson.Result{}, err
	}

	var found gjson.Result
	ok := false
	for _, m := range scriptRe.FindAllStringSubmatch(html, -1) {
		body := m[1]
		if !strings.Contains(body, marker) {
			continue
		}

		raw := extractObject(body, marker, assignRe)
		if raw == "" {
			log.Printf("scrape: script mentions %s but no object literal could be captured", marker)
			continue
		}
		parsed := gjson.Parse(raw)
		if !parsed.Get("loaderData").Exists() {
			log.Printf("scrape: %s candidate parsed but has no loaderData root, skipping", marker)
			continue
		}
		found = parsed
		ok = true
	}

	if !ok {
		return gjson.Result{}, ErrMarkerNotFound
	}
	return found, nil
}

// extractObject captures the object literal assigned to marker. The
// non-greedy regex matches the common case; when its capture is not valid
// JSON (an inner string containing "};" for example), a balanced-brace scan
// over the same script is used instead.
func extractObject(body, marker string, assignRe *regexp.Regexp) string {
	if m := assignRe.FindStringSubmatch(body); m != nil && gjson.Valid(m[1]) {
		return m[1]
	}

	idx := strings.Index(body, marker)
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(marker):]
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return ""
	}
	open := strings.Index(rest[eq:], "{")
	if open < 0 {
		return ""
	}
	raw := balancedObject(rest[eq+open:])
	if raw == "" || !gjson.Valid(raw) {
		return ""
	}
	return raw
}

// balancedObject returns the prefix of s (which must start at '{') spanning
// one brace-balanced object, skipping braces inside JSON string literals.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
