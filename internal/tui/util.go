package tui

import (
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// wrap breaks s into lines of at most width runes, each starting with prefix. Words longer
// than a line are split.
func wrap(s, prefix string, width int) string {
	avail := width - utf8.RuneCountInString(prefix)
	var out []string
	for _, paragraph := range strings.Split(s, "\n") {
		if avail <= 0 {
			out = append(out, prefix+paragraph)
			continue
		}
		var line []rune
		flush := func() {
			out = append(out, prefix+string(line))
			line = line[:0]
		}
		for i, word := range strings.Split(paragraph, " ") {
			runes := []rune(word)
			if i > 0 && len(line) > 0 {
				if len(line)+1+len(runes) <= avail {
					line = append(line, ' ')
				} else {
					flush()
				}
			}
			for len(line)+len(runes) > avail {
				n := avail - len(line)
				line = append(line, runes[:n]...)
				runes = runes[n:]
				flush()
			}
			line = append(line, runes...)
		}
		flush()
	}
	return strings.Join(out, "\n")
}

func renderMarkdown(content string, width int) string {
	var margin uint = 0
	dark := styles.DarkStyleConfig
	dark.Document.Color = nil
	dark.Document.Margin = &margin
	dark.Code.Prefix = ""
	dark.Code.Suffix = ""
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(dark),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	markdown, err := renderer.Render(strings.TrimSpace(content))
	if err != nil {
		return content
	}
	return strings.TrimSpace(markdown)
}
