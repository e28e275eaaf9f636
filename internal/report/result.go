package report

import (
	"encoding/json"
	"errors"
	"math"
)

// ErrMalformed is returned by Decode when the body is not a JSON object.
var ErrMalformed = errors.New("report: malformed analysis response")

// Summary holds the headline figures. Nil fields were absent or mistyped.
type Summary struct {
	AvgEngagement   *float64 `json:"avg_engagement,omitempty" yaml:"avg_engagement,omitempty"`
	ConfusionEvents *int     `json:"confusion_events,omitempty" yaml:"confusion_events,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty" yaml:"duration_seconds,omitempty"`
}

// HeatmapBin is one time window of average engagement.
type HeatmapBin struct {
	Start         float64 `json:"start" yaml:"start"`
	End           float64 `json:"end" yaml:"end"`
	AvgEngagement float64 `json:"avg_engagement" yaml:"avg_engagement"`
}

// ConfusionEvent is a detected span of cognitive strain.
type ConfusionEvent struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
	Score float64 `json:"score" yaml:"score"`
}

// Note is a timestamped annotation. Timestamp is nil when the service sent
// something that is not a number.
type Note struct {
	Timestamp     *float64 `json:"timestamp" yaml:"timestamp"`
	Text          string   `json:"text" yaml:"text"`
	SourceSegment string   `json:"source_segment,omitempty" yaml:"source_segment,omitempty"`
	Score         *float64 `json:"score,omitempty" yaml:"score,omitempty"`
}

// Result is a normalized analysis response. It is replaced wholesale per
// round and never mutated after construction.
type Result struct {
	SessionID string           `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Summary   Summary          `json:"summary" yaml:"summary"`
	Heatmap   []HeatmapBin     `json:"heatmap" yaml:"heatmap"`
	Events    []ConfusionEvent `json:"events" yaml:"events"`
	Notes     []Note           `json:"notes" yaml:"notes"`
}

// Decode parses a response body and normalizes it.
func Decode(body []byte) (*Result, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, ErrMalformed
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, ErrMalformed
	}
	return Normalize(doc), nil
}

// Normalize maps an untyped response document onto Result field by field.
// Missing or mistyped fields never fail: scalars stay nil, sequences empty.
// Sequence entries that are not objects are skipped.
func Normalize(doc any) *Result {
	obj, _ := doc.(map[string]any)

	res := &Result{
		SessionID: stringField(obj, "session_id"),
		Heatmap:   []HeatmapBin{},
		Events:    []ConfusionEvent{},
		Notes:     []Note{},
	}

	if summary, ok := obj["summary"].(map[string]any); ok {
		res.Summary = Summary{
			AvgEngagement:   numberField(summary, "avg_engagement"),
			ConfusionEvents: countField(summary, "confusion_events"),
			DurationSeconds: numberField(summary, "duration_seconds"),
		}
	}

	for _, item := range objects(obj, "heatmap") {
		res.Heatmap = append(res.Heatmap, HeatmapBin{
			Start:         valueOr(numberField(item, "start"), 0),
			End:           valueOr(numberField(item, "end"), 0),
			AvgEngagement: valueOr(numberField(item, "avg_engagement"), 0),
		})
	}

	for _, item := range objects(obj, "events") {
		res.Events = append(res.Events, ConfusionEvent{
			Start: valueOr(numberField(item, "start"), 0),
			End:   valueOr(numberField(item, "end"), 0),
			Score: valueOr(numberField(item, "score"), 0),
		})
	}

	for _, item := range objects(obj, "notes") {
		res.Notes = append(res.Notes, Note{
			Timestamp:     numberField(item, "timestamp"),
			Text:          stringField(item, "text"),
			SourceSegment: stringField(item, "source_segment"),
			Score:         numberField(item, "score"),
		})
	}

	return res
}

func objects(obj map[string]any, key string) []map[string]any {
	arr, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func numberField(obj map[string]any, key string) *float64 {
	v, ok := obj[key].(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func countField(obj map[string]any, key string) *int {
	v := numberField(obj, key)
	if v == nil || *v < 0 || *v != math.Trunc(*v) || *v > math.MaxInt32 {
		return nil
	}
	n := int(*v)
	return &n
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
