package scorecard

import (
	"testing"

	"github.com/voxproof/eval-console/internal/result"
)

func TestIsValid(t *testing.T) {
	invalid := []interface{}{nil, "", "   ", "n/a", "N/A", "na", "NA", " n/a "}
	for _, v := range invalid {
		if IsValid(v) {
			t.Errorf("IsValid(%#v) = true, want false", v)
		}
	}

	// Zero and false are real data, not absence.
	valid := []interface{}{0, 0.0, false, "0", "no", "none", 1.0, "happy"}
	for _, v := range valid {
		if !IsValid(v) {
			t.Errorf("IsValid(%#v) = false, want true", v)
		}
	}
}

func TestRenderRating_ClampAndBands(t *testing.T) {
	cases := []struct {
		value   interface{}
		display string
		tone    Tone
	}{
		{1.4, "100%", ToneGood},  // clamps high
		{-0.2, "0%", TonePoor},   // clamps low
		{0.7, "70%", ToneGood},   // inclusive lower bound of "good"
		{0.69, "69%", ToneBorderline},
		{0.5, "50%", ToneBorderline}, // inclusive lower bound of "borderline"
		{0.49, "49%", TonePoor},
		{0.0, "0%", TonePoor},
		{"0.85", "85%", ToneGood}, // numeric strings parse
	}
	for _, tc := range cases {
		r := Render(tc.value, result.MetricRating, "Professionalism")
		if r.Display != tc.display {
			t.Errorf("Render(%v) display = %q, want %q", tc.value, r.Display, tc.display)
		}
		if r.Tone != tc.tone {
			t.Errorf("Render(%v) tone = %q, want %q", tc.value, r.Tone, tc.tone)
		}
	}
}

func TestRenderRating_QualitativeTextFallsBackToLabel(t *testing.T) {
	r := Render("excellent", result.MetricRating, "Overall Impression")
	if r.Display != "excellent" {
		t.Errorf("qualitative rating display = %q, want raw label", r.Display)
	}
}

func TestRenderBoolean(t *testing.T) {
	yes := []interface{}{true, 1, 1.0, "1", "true", "TRUE"}
	for _, v := range yes {
		if r := Render(v, result.MetricBoolean, "Goal Achieved"); r.Display != "Yes" {
			t.Errorf("Render(%#v) = %q, want Yes", v, r.Display)
		}
	}

	no := []interface{}{false, 0, "0", "false", "anything else"}
	for _, v := range no {
		if r := Render(v, result.MetricBoolean, "Goal Achieved"); r.Display != "No" {
			t.Errorf("Render(%#v) = %q, want No", v, r.Display)
		}
	}
}

func TestRenderNumber_UnitsFromTaxonomy(t *testing.T) {
	r := Render(42.35, result.MetricNumber, "Signal to Noise Ratio")
	if r.Display != "42.3 dB" {
		t.Errorf("acoustic number display = %q, want %q", r.Display, "42.3 dB")
	}
	if r.Category != CategoryAcoustic {
		t.Errorf("category = %q, want acoustic", r.Category)
	}

	r = Render(221.0, result.MetricNumber, "Mean Pitch")
	if r.Display != "221.0 Hz" {
		t.Errorf("pitch display = %q, want %q", r.Display, "221.0 Hz")
	}

	// Conversation-category numbers render as a one-decimal number, no unit.
	r = Render(3.14159, result.MetricNumber, "Average Response Length")
	if r.Display != "3.1" {
		t.Errorf("plain number display = %q, want %q", r.Display, "3.1")
	}
	if r.Category != CategoryConversation {
		t.Errorf("unknown metric category = %q, want conversation", r.Category)
	}
}

func TestRenderCategorical(t *testing.T) {
	r := Render("happy", result.MetricCategorical, "Caller Emotion")
	if r.Emoji == "" || r.Tone != ToneGood {
		t.Errorf("known label should have style, got tone=%q emoji=%q", r.Tone, r.Emoji)
	}

	// Unknown labels keep their raw text with the generic style.
	r = Render("quizzical", result.MetricCategorical, "Caller Emotion")
	if r.Display != "quizzical" {
		t.Errorf("unknown label display = %q, want raw text", r.Display)
	}
	if r.Tone != ToneNeutral || r.Emoji != "" {
		t.Errorf("unknown label should be neutral, got tone=%q emoji=%q", r.Tone, r.Emoji)
	}
}

func TestClassify(t *testing.T) {
	if c := Classify("Mean Pitch"); c != CategoryAcoustic {
		t.Errorf("Classify(Mean Pitch) = %q", c)
	}
	if c := Classify("Voice Naturalness"); c != CategoryAIVoice {
		t.Errorf("Classify(Voice Naturalness) = %q", c)
	}
	if c := Classify("Something Never Seen"); c != CategoryConversation {
		t.Errorf("Classify default = %q, want conversation", c)
	}
}

func scoresFromJSON(t *testing.T, raw string) result.MetricScores {
	t.Helper()
	var m result.MetricScores
	if err := m.UnmarshalJSON([]byte(raw)); err != nil {
		t.Fatalf("decode scores: %v", err)
	}
	return m
}

func TestGroup_ExcludesInvalidAndKeepsOrder(t *testing.T) {
	scores := scoresFromJSON(t, `{
		"m1": {"metric_name": "Politeness", "type": "rating", "value": 0.9},
		"m2": {"metric_name": "Mean Pitch", "type": "number", "value": "n/a"},
		"m3": {"metric_name": "Clarity", "type": "rating", "value": 0.4},
		"m4": {"metric_name": "Jitter", "type": "number", "value": 0.8},
		"m5": {"metric_name": "Goal Achieved", "type": "boolean", "value": null}
	}`)

	g := Group(scores)

	if len(g.Acoustic) != 1 || g.Acoustic[0].Name != "Jitter" {
		t.Errorf("acoustic group = %+v, want only Jitter (Mean Pitch is n/a)", g.Acoustic)
	}
	if len(g.Conversation) != 2 {
		t.Fatalf("conversation group has %d entries, want 2 (null boolean excluded)", len(g.Conversation))
	}
	// Insertion order of the source mapping, not alphabetical.
	if g.Conversation[0].Name != "Politeness" || g.Conversation[1].Name != "Clarity" {
		t.Errorf("conversation order = [%s, %s], want [Politeness, Clarity]",
			g.Conversation[0].Name, g.Conversation[1].Name)
	}
}

func TestFlat_RendersPlaceholders(t *testing.T) {
	scores := scoresFromJSON(t, `{
		"m1": {"metric_name": "Politeness", "type": "rating", "value": 0.9},
		"m2": {"metric_name": "Mean Pitch", "type": "number", "value": "N/A"}
	}`)

	flat := Flat(scores)
	if len(flat) != 2 {
		t.Fatalf("flat view has %d entries, want 2", len(flat))
	}
	if flat[1].Display != "N/A" {
		t.Errorf("invalid metric in flat view = %q, want N/A placeholder", flat[1].Display)
	}
}

func TestGroup_EmptyScores(t *testing.T) {
	g := Group(result.MetricScores{})
	if len(g.Acoustic)+len(g.AIVoice)+len(g.Conversation) != 0 {
		t.Error("empty scores produced grouped metrics")
	}
}
