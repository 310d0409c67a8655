package render

import (
	"fmt"

	"github.com/charmbracelet/glamour"

	mdparser "github.com/starford/ansuz/internal/parser"
)

// DefaultTerminalStyle is the glamour style used when none is configured.
const DefaultTerminalStyle = "dark"

// Terminal renders markdown for display in a terminal.
func Terminal(markdown, style string, width int) (string, error) {
	if style == "" {
		style = DefaultTerminalStyle
	}
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("render: terminal renderer: %w", err)
	}
	out, err := r.Render(mdparser.Parse(markdown).Body)
	if err != nil {
		return "", fmt.Errorf("render: terminal: %w", err)
	}
	return out, nil
}
