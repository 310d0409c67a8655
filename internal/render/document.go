package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	mdparser "github.com/starford/ansuz/internal/parser"
)

var documentTmpl = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
{{- if .Keywords}}
<meta name="keywords" content="{{.Keywords}}">
{{- end}}
{{- if .Stylesheet}}
<style>
{{.Stylesheet}}
</style>
{{- end}}
</head>
<body>
<article class="markdown-body">
{{.Body}}
</article>
</body>
</html>
`))

// Document renders markdown into a standalone HTML page. The title comes from
// front matter or the first H1, falling back to fallbackTitle.
func Document(r Renderer, markdown, fallbackTitle, stylesheet string) (string, error) {
	fragment, err := r.Render(markdown)
	if err != nil {
		return "", err
	}
	meta := mdparser.Parse(markdown)
	title := meta.Title
	if title == "" {
		title = fallbackTitle
	}

	var buf bytes.Buffer
	err = documentTmpl.Execute(&buf, struct {
		Title      string
		Keywords   string
		Stylesheet template.CSS
		Body       template.HTML
	}{
		Title:      title,
		Keywords:   strings.Join(meta.Tags, ", "),
		Stylesheet: template.CSS(stylesheet),
		// fragment has already been sanitised by the renderer.
		Body: template.HTML(fragment),
	})
	if err != nil {
		return "", fmt.Errorf("render: document: %w", err)
	}
	return buf.String(), nil
}
