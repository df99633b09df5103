package logging

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Console prints the short status lines hop commands show to people. It is
// separate from the logrus stream and never carries timestamps or levels.
// Colour is decided by the writer: a bytes.Buffer or a pipe gets plain text.
type Console struct {
	w    io.Writer
	ok   lipgloss.Style
	idle lipgloss.Style
	key  lipgloss.Style
	val  lipgloss.Style
}

// NewConsole returns a Console writing to w.
func NewConsole(w io.Writer) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		w:    w,
		ok:   r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		idle: r.NewStyle().Foreground(lipgloss.Color("8")),
		key:  r.NewStyle().Foreground(lipgloss.Color("8")),
		val:  r.NewStyle().Foreground(lipgloss.Color("14")),
	}
}

// Success prints "✓ msg" followed by the fields in key order.
func (c *Console) Success(msg string, fields map[string]interface{}) {
	fmt.Fprintln(c.w, c.ok.Render("✓")+" "+msg+c.render(fields))
}

// Idle prints "○ msg" for states where nothing is happening.
func (c *Console) Idle(msg string, fields map[string]interface{}) {
	fmt.Fprintln(c.w, c.idle.Render("○")+" "+msg+c.render(fields))
}

// Hint prints a dimmed follow-up line, indented under the previous one.
func (c *Console) Hint(msg string) {
	fmt.Fprintln(c.w, "  "+c.idle.Render(msg))
}

func (c *Console) render(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString("  ")
		b.WriteString(c.key.Render(k + "="))
		b.WriteString(c.val.Render(fmt.Sprint(fields[k])))
	}
	return b.String()
}
