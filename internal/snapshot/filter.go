package snapshot

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter decides whether source files participate in a build.
type Filter struct {
	include []*regexp.Regexp
}

// NewFilter compiles glob patterns into a filter. A nil or empty pattern list
// matches every path. Patterns use slash-separated relative paths with the
// usual glob syntax plus ** for any number of directories.
func NewFilter(globs []string) (*Filter, error) {
	out := make([]*regexp.Regexp, 0, len(globs))
	for _, g := range globs {
		if strings.TrimSpace(g) == "" {
			continue
		}
		r, err := regexp.Compile(globToRegex(g))
		if err != nil {
			return nil, fmt.Errorf("compile glob %s: %w", g, err)
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &Filter{include: out}, nil
}

// Match reports whether the relative path passes the filter. A nil filter
// matches everything.
func (f *Filter) Match(relPath string) bool {
	if f == nil || len(f.include) == 0 {
		return true
	}
	for _, rx := range f.include {
		if rx.MatchString(relPath) {
			return true
		}
	}
	return false
}

// globToRegex converts a glob pattern to an anchored regular expression.
// ** spans directory separators, * and ? stay within one path segment.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")

	i := 0
	for i < len(glob) {
		c := glob[i]
		switch c {
		case '*':
			if strings.HasPrefix(glob[i:], "**/") {
				b.WriteString(`(?:[^/]+/)*`)
				i += 3
				continue
			}
			if strings.HasPrefix(glob[i:], "**") {
				b.WriteString(`.*`)
				i += 2
				continue
			}
			b.WriteString(`[^/]*`)
		case '?':
			b.WriteString(`[^/]`)
		case '.', '+', '(', ')', '|', '^', '$', '{', '}', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
		i++
	}

	b.WriteString("$")
	return b.String()
}
