// Package parser separates YAML front matter from a Markdown document body.
package parser

import (
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Result holds the output of parsing a Markdown document.
type Result struct {
	Frontmatter map[string]any
	Body        string
	Tags        []string
	Title       string
}

// Parse extracts front matter, body, tags, and title from Markdown text.
// It never fails: malformed front matter leaves the whole text as body.
func Parse(markdown string) *Result {
	fm, body := splitFrontmatter(markdown)
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        frontmatterTags(fm),
		Title:       deriveTitle(fm, body),
	}
}

// splitFrontmatter separates YAML front matter (between leading --- lines)
// from the body. Without a closing delimiter the entire text is body.
func splitFrontmatter(markdown string) (map[string]any, string) {
	trimmed := strings.TrimLeft(markdown, "\n\r")
	if !strings.HasPrefix(trimmed, delim+"\n") && !strings.HasPrefix(trimmed, delim+"\r\n") {
		return nil, markdown
	}

	rest := trimmed[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return nil, markdown
	}

	yamlBlock := rest[:idx]
	after := rest[idx+1+len(delim):]
	// The closing delimiter must stand on its own line.
	if after != "" && after[0] != '\n' && after[0] != '\r' {
		return nil, markdown
	}
	body := strings.TrimLeft(after, "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(yamlBlock), &fm); err != nil {
		return nil, markdown
	}
	return fm, body
}

func frontmatterTags(fm map[string]any) []string {
	raw, ok := fm["tags"]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			add(s)
		}
	}
	return out
}

// deriveTitle returns the front matter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if t, ok := fm["title"].(string); ok && t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
