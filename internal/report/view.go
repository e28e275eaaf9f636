package report

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

const (
	// DefaultHeatmapCap is how many bins the first page of a view shows.
	DefaultHeatmapCap = 48

	// TimestampPlaceholder is shown for notes without a numeric timestamp.
	TimestampPlaceholder = "--"

	intensityFloor = 0.2
)

// Options controls Present.
type Options struct {
	HeatmapCap int
}

// Cell is one rendered heatmap bin.
type Cell struct {
	Index         int     `json:"index" yaml:"index"`
	Start         float64 `json:"start" yaml:"start"`
	End           float64 `json:"end" yaml:"end"`
	AvgEngagement float64 `json:"avg_engagement" yaml:"avg_engagement"`
	Intensity     float64 `json:"intensity" yaml:"intensity"`
	Label         string  `json:"label" yaml:"label"`
}

// NoteLine is one rendered note.
type NoteLine struct {
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Text      string `json:"text" yaml:"text"`
}

// EventLine is one rendered confusion event.
type EventLine struct {
	Span  string `json:"span" yaml:"span"`
	Score string `json:"score" yaml:"score"`
}

// View is what the rendering layer draws. Blank strings mean "absent".
type View struct {
	SessionID        string      `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	AvgEngagement    string      `json:"avg_engagement" yaml:"avg_engagement"`
	ConfusionEvents  string      `json:"confusion_events" yaml:"confusion_events"`
	Duration         string      `json:"duration,omitempty" yaml:"duration,omitempty"`
	Heatmap          []Cell      `json:"heatmap" yaml:"heatmap"`
	HeatmapTotal     int         `json:"heatmap_total" yaml:"heatmap_total"`
	HeatmapRemaining int         `json:"heatmap_remaining" yaml:"heatmap_remaining"`
	Events           []EventLine `json:"events" yaml:"events"`
	Notes            []NoteLine  `json:"notes" yaml:"notes"`
}

// Present derives the view of r. Only the first HeatmapCap bins are placed
// in the view; the rest stay in r and are reachable through HeatmapPage.
func Present(r *Result, opts Options) View {
	if opts.HeatmapCap <= 0 {
		opts.HeatmapCap = DefaultHeatmapCap
	}
	if r == nil {
		r = Normalize(nil)
	}

	v := View{
		SessionID:    r.SessionID,
		HeatmapTotal: len(r.Heatmap),
		Events:       make([]EventLine, 0, len(r.Events)),
		Notes:        make([]NoteLine, 0, len(r.Notes)),
	}

	if r.Summary.AvgEngagement != nil {
		v.AvgEngagement = strconv.FormatFloat(*r.Summary.AvgEngagement, 'f', 2, 64)
	}
	if r.Summary.ConfusionEvents != nil {
		v.ConfusionEvents = strconv.Itoa(*r.Summary.ConfusionEvents)
	}
	if r.Summary.DurationSeconds != nil {
		v.Duration = FormatSeconds(*r.Summary.DurationSeconds)
	}

	v.Heatmap, _ = HeatmapPage(r, 0, opts.HeatmapCap)
	v.HeatmapRemaining = len(r.Heatmap) - len(v.Heatmap)

	for _, e := range r.Events {
		v.Events = append(v.Events, EventLine{
			Span:  FormatSeconds(e.Start) + " - " + FormatSeconds(e.End),
			Score: strconv.FormatFloat(e.Score, 'f', 2, 64),
		})
	}

	for _, n := range r.Notes {
		v.Notes = append(v.Notes, NoteLine{
			Timestamp: FormatTimestamp(n.Timestamp),
			Text:      n.Text,
		})
	}

	return v
}

// HeatmapPage returns page (zero based) of size cells in received order and
// whether later pages exist.
func HeatmapPage(r *Result, page, size int) ([]Cell, bool) {
	if r == nil || size <= 0 || page < 0 {
		return []Cell{}, false
	}

	start := page * size
	if start >= len(r.Heatmap) {
		return []Cell{}, false
	}
	end := min(start+size, len(r.Heatmap))

	cells := make([]Cell, 0, end-start)
	for i := start; i < end; i++ {
		b := r.Heatmap[i]
		cells = append(cells, Cell{
			Index:         i,
			Start:         b.Start,
			End:           b.End,
			AvgEngagement: b.AvgEngagement,
			Intensity:     Intensity(b.AvgEngagement),
			Label:         FormatSeconds(b.Start) + " - " + FormatSeconds(b.End),
		})
	}
	return cells, end < len(r.Heatmap)
}

// Intensity maps engagement to a display channel with a floor boost so that
// zero-engagement bins stay visible.
func Intensity(avgEngagement float64) float64 {
	return math.Min(1, avgEngagement+intensityFloor)
}

// FormatTimestamp renders a note timestamp, or the placeholder when absent.
func FormatTimestamp(ts *float64) string {
	if ts == nil {
		return TimestampPlaceholder
	}
	return FormatSeconds(*ts)
}

// FormatSeconds renders v with one decimal and an "s" suffix. Rounding is
// done on the shortest decimal form of v, half away from zero, so 12.45
// renders as 12.5s even though its binary value is slightly below.
func FormatSeconds(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return TimestampPlaceholder
	}

	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		return strconv.FormatFloat(v, 'f', 1, 64) + "s"
	}
	r.Mul(r, big.NewRat(10, 1))

	num := new(big.Int).Abs(r.Num())
	den := r.Denom()
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Mul(rem, big.NewInt(2)).Cmp(den) >= 0 {
		q.Add(q, big.NewInt(1))
	}

	sign := ""
	if r.Sign() < 0 && q.Sign() != 0 {
		sign = "-"
	}
	whole, frac := new(big.Int).QuoRem(q, big.NewInt(10), new(big.Int))
	return fmt.Sprintf("%s%s.%ss", sign, whole.String(), frac.String())
}
