package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// heatmap cells per text row, matching a 12-column grid
const gridColumns = 12

var shades = []string{"░", "▒", "▓", "█"}

// Render writes v in the requested format.
func Render(w io.Writer, v View, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, v)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func renderText(w io.Writer, v View) error {
	title := color.New(color.FgHiBlue, color.Bold)
	label := color.New(color.FgWhite)
	heat := color.New(color.FgBlue)
	dim := color.New(color.Faint)

	var b strings.Builder

	title.Fprintln(&b, "Engagement Summary")
	if v.SessionID != "" {
		dim.Fprintf(&b, "Session: %s\n", v.SessionID)
	}
	label.Fprintf(&b, "Avg engagement: %s\n", v.AvgEngagement)
	label.Fprintf(&b, "Confusion events: %s\n", v.ConfusionEvents)
	if v.Duration != "" {
		label.Fprintf(&b, "Duration: %s\n", v.Duration)
	}

	b.WriteString("\n")
	title.Fprintf(&b, "Heatmap (%d of %d bins)\n", len(v.Heatmap), v.HeatmapTotal)
	for i, c := range v.Heatmap {
		heat.Fprint(&b, Shade(c.Intensity))
		if (i+1)%gridColumns == 0 || i == len(v.Heatmap)-1 {
			b.WriteString("\n")
		}
	}
	if v.HeatmapRemaining > 0 {
		dim.Fprintf(&b, "… %d more bins not shown\n", v.HeatmapRemaining)
	}

	if len(v.Events) > 0 {
		b.WriteString("\n")
		title.Fprintln(&b, "Confusion Events")
		for _, e := range v.Events {
			fmt.Fprintf(&b, "  %-18s score %s\n", e.Span, e.Score)
		}
	}

	b.WriteString("\n")
	title.Fprintln(&b, "Notes")
	if len(v.Notes) == 0 {
		dim.Fprintln(&b, "  (none)")
	}
	for _, n := range v.Notes {
		fmt.Fprintf(&b, "  %8s  %s\n", n.Timestamp, n.Text)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderCells writes cells as a shaded grid with their labels, one per line.
func RenderCells(w io.Writer, cells []Cell) error {
	heat := color.New(color.FgBlue)
	var b strings.Builder
	for _, c := range cells {
		heat.Fprint(&b, Shade(c.Intensity))
		fmt.Fprintf(&b, " #%-3d %-16s %.2f\n", c.Index, c.Label, c.AvgEngagement)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Shade picks a block character for an intensity in [0, 1].
func Shade(intensity float64) string {
	switch {
	case intensity < 0.4:
		return shades[0]
	case intensity < 0.6:
		return shades[1]
	case intensity < 0.8:
		return shades[2]
	default:
		return shades[3]
	}
}
