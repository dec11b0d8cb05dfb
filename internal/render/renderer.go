// Package render prints log entries for humans or for other programs.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcelocantos/txtlog/internal/entry"
)

// Renderer writes entries to an output stream.
type Renderer interface {
	Render(e entry.Entry) error
}

// New returns the renderer for format ("text", "json" or "raw").
func New(format string, w io.Writer) (Renderer, error) {
	switch format {
	case "", "text":
		return NewTextRenderer(w), nil
	case "json":
		return NewJSONRenderer(w), nil
	case "raw":
		return RawRenderer{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

var (
	styleTime  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleIn    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)  // cyan
	styleOut   = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true) // green
	styleInfo  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))            // gray
	styleOther = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
)

// TextRenderer prints entries with kind-based colours. lipgloss drops the
// colours automatically when w is not a terminal.
type TextRenderer struct {
	w io.Writer
	r *lipgloss.Renderer
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w, r: lipgloss.NewRenderer(w)}
}

func (t *TextRenderer) Render(e entry.Entry) error {
	ts := styleTime.Renderer(t.r).Render(entry.FormatTime(e.Time))
	kind := kindStyle(e.Kind).Renderer(t.r).Render(fmt.Sprintf("%-4s", e.Kind))
	_, err := fmt.Fprintf(t.w, "%s %s %s\n", ts, kind, e.Text)
	return err
}

func kindStyle(k entry.Kind) lipgloss.Style {
	switch k {
	case entry.KindIn:
		return styleIn
	case entry.KindOut:
		return styleOut
	case entry.KindInfo:
		return styleInfo
	default:
		return styleOther
	}
}

// JSONRenderer prints one JSON object per line.
type JSONRenderer struct {
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Render(e entry.Entry) error {
	return r.enc.Encode(e)
}

// RawRenderer prints entries exactly as stored in the file.
type RawRenderer struct {
	w io.Writer
}

func (r RawRenderer) Render(e entry.Entry) error {
	_, err := io.WriteString(r.w, e.Line())
	return err
}
