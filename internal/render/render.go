// Package render converts Markdown into HTML for the preview pane and export.
package render

import (
	"bytes"
	"fmt"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	mdparser "github.com/starford/ansuz/internal/parser"
)

// Renderer turns Markdown text into an HTML fragment.
type Renderer interface {
	Render(markdown string) (string, error)
}

// Func adapts a plain function to Renderer.
type Func func(markdown string) (string, error)

// Render calls f.
func (f Func) Render(markdown string) (string, error) { return f(markdown) }

var languageClass = regexp.MustCompile(`^language-[\w+#-]+$`)

// Goldmark renders GitHub-flavoured Markdown and sanitises the result.
// Leading YAML front matter is not rendered.
type Goldmark struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	pool   sync.Pool
}

// NewGoldmark creates the default renderer.
func NewGoldmark() *Goldmark {
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(languageClass).OnElements("code")
	policy.AllowAttrs("type", "checked", "disabled").OnElements("input")

	g := &Goldmark{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Footnote),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		policy: policy,
	}
	g.pool.New = func() any { return new(bytes.Buffer) }
	return g
}

// Render implements Renderer.
func (g *Goldmark) Render(markdown string) (string, error) {
	body := mdparser.Parse(markdown).Body

	buf := g.pool.Get().(*bytes.Buffer)
	buf.Reset()
	defer g.pool.Put(buf)

	if err := g.md.Convert([]byte(body), buf); err != nil {
		return "", fmt.Errorf("render: convert: %w", err)
	}
	return g.policy.Sanitize(buf.String()), nil
}
