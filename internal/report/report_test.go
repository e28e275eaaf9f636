package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const sampleBody = `{
  "summary": {"avg_engagement": 0.73, "confusion_events": 4},
  "heatmap": [{"start": 0, "end": 1, "avg_engagement": 0.5}],
  "notes": [{"timestamp": 12.45, "text": "struggle with factoring"}]
}`

func TestDecode_Sample(t *testing.T) {
	res, err := Decode([]byte(sampleBody))
	require.NoError(t, err)

	require.NotNil(t, res.Summary.AvgEngagement)
	require.InDelta(t, 0.73, *res.Summary.AvgEngagement, 1e-12)
	require.NotNil(t, res.Summary.ConfusionEvents)
	require.Equal(t, 4, *res.Summary.ConfusionEvents)
	require.Nil(t, res.Summary.DurationSeconds)

	require.Len(t, res.Heatmap, 1)
	require.Len(t, res.Notes, 1)

	view := Present(res, Options{})
	require.Equal(t, "0.73", view.AvgEngagement)
	require.Equal(t, "4", view.ConfusionEvents)
	require.Len(t, view.Heatmap, 1)
	require.InDelta(t, 0.7, view.Heatmap[0].Intensity, 1e-9)
	require.Equal(t, "0.0s - 1.0s", view.Heatmap[0].Label)
	require.Equal(t, []NoteLine{{Timestamp: "12.5s", Text: "struggle with factoring"}}, view.Notes)
}

func TestDecode_Malformed(t *testing.T) {
	for _, body := range []string{"", "not json", "[1,2,3]", `"text"`, "null", "{"} {
		_, err := Decode([]byte(body))
		require.ErrorIs(t, err, ErrMalformed, "body %q", body)
	}
}

func TestNormalize_MissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"heatmap absent", `{"summary": {"avg_engagement": 0.2}, "notes": []}`},
		{"wrong types", `{"summary": "n/a", "heatmap": {"a": 1}, "notes": "none"}`},
		{"null sequences", `{"heatmap": null, "notes": null, "events": null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Decode([]byte(tt.body))
			require.NoError(t, err)
			require.NotNil(t, res.Heatmap)
			require.Empty(t, res.Heatmap)
			require.NotNil(t, res.Notes)
			require.Empty(t, res.Notes)

			view := Present(res, Options{})
			require.Empty(t, view.Heatmap)
			require.Empty(t, view.Notes)
			require.Empty(t, view.ConfusionEvents)
		})
	}

	require.NotNil(t, Normalize(nil))
	require.NotNil(t, Normalize("scalar"))
}

func TestNormalize_MistypedSummaryFields(t *testing.T) {
	res, err := Decode([]byte(`{"summary": {"avg_engagement": "high", "confusion_events": 2.5}}`))
	require.NoError(t, err)
	require.Nil(t, res.Summary.AvgEngagement)
	require.Nil(t, res.Summary.ConfusionEvents)

	view := Present(res, Options{})
	require.Equal(t, "", view.AvgEngagement)
	require.Equal(t, "", view.ConfusionEvents)
}

func TestNormalize_MalformedNoteTimestamp(t *testing.T) {
	res, err := Decode([]byte(`{"notes": [
		{"timestamp": "soon", "text": "a"},
		{"text": "b"},
		{"timestamp": 3, "text": "c", "source_segment": "seg", "score": 0.9},
		7
	]}`))
	require.NoError(t, err)
	require.Len(t, res.Notes, 3)
	require.Equal(t, "seg", res.Notes[2].SourceSegment)
	require.NotNil(t, res.Notes[2].Score)

	view := Present(res, Options{})
	require.Equal(t, []NoteLine{
		{Timestamp: TimestampPlaceholder, Text: "a"},
		{Timestamp: TimestampPlaceholder, Text: "b"},
		{Timestamp: "3.0s", Text: "c"},
	}, view.Notes)
}

func TestNormalize_SupplementaryFields(t *testing.T) {
	res, err := Decode([]byte(`{
		"session_id": "4b7f",
		"summary": {"avg_engagement": 0.4, "confusion_events": 1, "duration_seconds": 93.25},
		"events": [{"start": 10, "end": 13, "score": 0.82}]
	}`))
	require.NoError(t, err)
	require.Equal(t, "4b7f", res.SessionID)
	require.Equal(t, []ConfusionEvent{{Start: 10, End: 13, Score: 0.82}}, res.Events)

	view := Present(res, Options{})
	require.Equal(t, "93.3s", view.Duration)
	require.Equal(t, []EventLine{{Span: "10.0s - 13.0s", Score: "0.82"}}, view.Events)
}

func heatmapBody(n int) string {
	bins := make([]string, n)
	for i := range bins {
		bins[i] = fmt.Sprintf(`{"start": %d, "end": %d, "avg_engagement": %g}`, i, i+1, float64(i%10)/10)
	}
	return `{"heatmap": [` + strings.Join(bins, ",") + `]}`
}

func TestPresent_HeatmapCap(t *testing.T) {
	res, err := Decode([]byte(heatmapBody(80)))
	require.NoError(t, err)
	require.Len(t, res.Heatmap, 80)

	view := Present(res, Options{HeatmapCap: 48})
	require.Len(t, view.Heatmap, 48)
	require.Equal(t, 80, view.HeatmapTotal)
	require.Equal(t, 32, view.HeatmapRemaining)
	for i, c := range view.Heatmap {
		require.Equal(t, i, c.Index)
		require.Equal(t, float64(i), c.Start)
	}

	// the model keeps every bin
	require.Len(t, res.Heatmap, 80)

	page, more := HeatmapPage(res, 1, 48)
	require.False(t, more)
	require.Len(t, page, 32)
	require.Equal(t, 48, page[0].Index)
	require.Equal(t, 79, page[31].Index)

	page, more = HeatmapPage(res, 2, 48)
	require.False(t, more)
	require.Empty(t, page)

	_, more = HeatmapPage(res, 0, 48)
	require.True(t, more)
}

func TestPresent_NonContiguousBins(t *testing.T) {
	res, err := Decode([]byte(`{"heatmap": [
		{"start": 0, "end": 2, "avg_engagement": 0.1},
		{"start": 5, "end": 6, "avg_engagement": 0.9}
	]}`))
	require.NoError(t, err)

	view := Present(res, Options{})
	require.Len(t, view.Heatmap, 2)
	require.Equal(t, "5.0s - 6.0s", view.Heatmap[1].Label)
}

func TestIntensity(t *testing.T) {
	require.InDelta(t, 0.2, Intensity(0), 1e-12)
	require.InDelta(t, 0.7, Intensity(0.5), 1e-12)
	require.Equal(t, 1.0, Intensity(0.8))
	require.Equal(t, 1.0, Intensity(1))
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0s"},
		{12.45, "12.5s"},
		{12.44, "12.4s"},
		{1.05, "1.1s"},
		{3, "3.0s"},
		{59.99, "60.0s"},
		{-1.25, "-1.3s"},
		{-0.04, "0.0s"},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, FormatSeconds(tt.in), "FormatSeconds(%v)", tt.in)
	}
	require.Equal(t, TimestampPlaceholder, FormatTimestamp(nil))
}

func TestRender_Formats(t *testing.T) {
	res, err := Decode([]byte(sampleBody))
	require.NoError(t, err)
	view := Present(res, Options{})

	var text bytes.Buffer
	require.NoError(t, Render(&text, view, FormatText))
	out := text.String()
	require.Contains(t, out, "Avg engagement: 0.73")
	require.Contains(t, out, "Confusion events: 4")
	require.Contains(t, out, "Heatmap (1 of 1 bins)")
	require.Contains(t, out, "12.5s  struggle with factoring")

	var js bytes.Buffer
	require.NoError(t, Render(&js, view, FormatJSON))
	var decoded View
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Equal(t, view.Notes, decoded.Notes)

	var ym bytes.Buffer
	require.NoError(t, Render(&ym, view, FormatYAML))
	var fromYAML View
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	require.Equal(t, "0.73", fromYAML.AvgEngagement)

	require.Error(t, Render(&bytes.Buffer{}, view, Format("html")))
}

func TestRender_TextEmptyResult(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Render(&out, Present(Normalize(nil), Options{}), FormatText))
	require.Contains(t, out.String(), "Heatmap (0 of 0 bins)")
	require.Contains(t, out.String(), "(none)")
}
