package waypoint

import (
	"bytes"
	"context"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Markdown returns the stock waypoint rendering *.md entries to *.html with
// GitHub-flavored markdown. Non-markdown entries pass through untouched.
func Markdown() Waypoint {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	return Waypoint{
		Name: "markdown",
		Fn: func(ctx context.Context, tree *Tree, env Env) (*Tree, error) {
			for _, path := range tree.Paths() {
				if !strings.HasSuffix(path, ".md") {
					continue
				}
				source, ok := tree.Bytes(path)
				if !ok {
					// Upstream waypoint left a non-byte value; let
					// normalization report it with this stage's name.
					continue
				}

				var rendered bytes.Buffer
				if err := md.Convert(source, &rendered); err != nil {
					return nil, err
				}

				tree.Remove(path)
				tree.Set(strings.TrimSuffix(path, ".md")+".html", rendered.Bytes())
			}
			return tree, nil
		},
	}
}
