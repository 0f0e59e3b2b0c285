package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/glamour"
)

// DefaultStyle is the glamour style used for bot replies.
const DefaultStyle = "dracula"

// RenderMarkdown renders md for a terminal of the given width.
func RenderMarkdown(md, style string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return out, nil
}

// WriteMarkdown is RenderMarkdown to w.
func WriteMarkdown(w io.Writer, md, style string, width int) error {
	out, err := RenderMarkdown(md, style, width)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
