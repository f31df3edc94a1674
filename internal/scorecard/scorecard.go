// Package scorecard filters, classifies, and formats the metric scores of an
// evaluation result into render-ready values. All functions are pure; the
// underlying result is never mutated.
package scorecard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/voxproof/eval-console/internal/result"
)

// Tone is the severity band attached to a rendered metric.
type Tone string

const (
	ToneGood       Tone = "good"
	ToneBorderline Tone = "borderline"
	TonePoor       Tone = "poor"
	ToneNeutral    Tone = "neutral"
)

// Rendered is one metric prepared for display.
type Rendered struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Display  string   `json:"display"`
	Tone     Tone     `json:"tone"`
	Emoji    string   `json:"emoji,omitempty"`
}

// Grouped partitions rendered metrics by category, each group keeping the
// insertion order of the source metric_scores mapping.
type Grouped struct {
	Acoustic     []Rendered `json:"acoustic"`
	AIVoice      []Rendered `json:"ai_voice"`
	Conversation []Rendered `json:"conversation"`
}

// IsValid reports whether a raw metric value carries real data. Nil, empty
// and whitespace-only strings, and the case-insensitive markers "n/a"/"na"
// count as absent. Zero and false are valid data, not absence.
func IsValid(v interface{}) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return false
		}
		switch strings.ToLower(trimmed) {
		case "n/a", "na":
			return false
		}
	}
	return true
}

// Render converts one raw metric value into its display form according to
// its declared type. The caller is expected to have filtered invalid values
// first; Render still degrades to a neutral raw rendering rather than
// failing.
func Render(v interface{}, typ result.MetricType, metricName string) Rendered {
	r := Rendered{
		Name:     metricName,
		Category: Classify(metricName),
		Tone:     ToneNeutral,
	}

	switch typ {
	case result.MetricBoolean:
		if truthy(v) {
			r.Display = "Yes"
			r.Tone = ToneGood
		} else {
			r.Display = "No"
			r.Tone = TonePoor
		}

	case result.MetricRating:
		f, ok := toFloat(v)
		if !ok {
			// Qualitative rating text ("excellent", "needs work") renders as
			// a categorical label instead of a percentage.
			return Render(v, result.MetricCategorical, metricName)
		}
		pct := int(math.Round(clamp01(f) * 100))
		r.Display = strconv.Itoa(pct) + "%"
		r.Tone = ratingTone(pct)

	case result.MetricNumber:
		f, ok := toFloat(v)
		if !ok {
			r.Display = fmt.Sprintf("%v", v)
			break
		}
		if unit := UnitFor(metricName); unit != "" &&
			(r.Category == CategoryAcoustic || r.Category == CategoryAIVoice) {
			r.Display = fmt.Sprintf("%.1f %s", f, unit)
		} else {
			r.Display = fmt.Sprintf("%.1f", f)
		}

	case result.MetricCategorical:
		label := fmt.Sprintf("%v", v)
		r.Display = label
		if style, ok := emotionStyles[strings.ToLower(strings.TrimSpace(label))]; ok {
			r.Tone = style.Tone
			r.Emoji = style.Emoji
		}

	default:
		r.Display = fmt.Sprintf("%v", v)
	}

	return r
}

// Group renders all valid metrics of a result and partitions them into the
// three category groups. Invalid values are dropped entirely; they are not
// shown as placeholders in the categorized views.
func Group(scores result.MetricScores) Grouped {
	var g Grouped
	for _, id := range scores.IDs {
		mv := scores.Values[id]
		if !IsValid(mv.Value) {
			continue
		}
		r := Render(mv.Value, mv.Type, mv.Name)
		r.ID = id
		switch r.Category {
		case CategoryAcoustic:
			g.Acoustic = append(g.Acoustic, r)
		case CategoryAIVoice:
			g.AIVoice = append(g.AIVoice, r)
		default:
			g.Conversation = append(g.Conversation, r)
		}
	}
	return g
}

// Flat renders every metric in insertion order for the legacy single-list
// view. Unlike Group, absent values appear as an "N/A" placeholder.
func Flat(scores result.MetricScores) []Rendered {
	out := make([]Rendered, 0, scores.Len())
	for _, id := range scores.IDs {
		mv := scores.Values[id]
		if !IsValid(mv.Value) {
			out = append(out, Rendered{
				ID:       id,
				Name:     mv.Name,
				Category: Classify(mv.Name),
				Display:  "N/A",
				Tone:     ToneNeutral,
			})
			continue
		}
		r := Render(mv.Value, mv.Type, mv.Name)
		r.ID = id
		out = append(out, r)
	}
	return out
}

// ratingTone bands an integer percentage: >=70 good, >=50 borderline,
// otherwise poor. Lower bounds are inclusive.
func ratingTone(pct int) Tone {
	switch {
	case pct >= 70:
		return ToneGood
	case pct >= 50:
		return ToneBorderline
	default:
		return TonePoor
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// truthy matches the loose encodings the backend uses for boolean metrics:
// real booleans, the number 1, and the strings "1"/"true".
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case float64:
		return val == 1
	case int:
		return val == 1
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		return s == "true" || s == "1"
	}
	return false
}

// toFloat extracts a numeric value from the loose types JSON decoding
// produces, including numeric strings.
func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
