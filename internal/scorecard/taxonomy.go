package scorecard

// Category classifies a metric by how it was produced: signal-derived,
// ML-perceptual, or LLM-judged.
type Category string

const (
	CategoryAcoustic     Category = "acoustic"
	CategoryAIVoice      Category = "ai_voice"
	CategoryConversation Category = "conversation"
)

// metricTaxonomy is the static lookup from metric name to category and, for
// numeric metrics, display unit. Names not listed here default to the
// conversation category with no unit.
var metricTaxonomy = map[string]struct {
	Category Category
	Unit     string
}{
	// Signal-derived measurements.
	"Signal to Noise Ratio": {CategoryAcoustic, "dB"},
	"Background Noise":      {CategoryAcoustic, "dB"},
	"Mean Pitch":            {CategoryAcoustic, "Hz"},
	"Pitch Range":           {CategoryAcoustic, "Hz"},
	"Speech Rate":           {CategoryAcoustic, ""},
	"Silence Ratio":         {CategoryAcoustic, "%"},
	"Jitter":                {CategoryAcoustic, "%"},
	"Shimmer":               {CategoryAcoustic, "%"},

	// ML-perceptual voice quality scores.
	"Voice Naturalness":    {CategoryAIVoice, ""},
	"Voice Clarity":        {CategoryAIVoice, ""},
	"Prosody":              {CategoryAIVoice, ""},
	"Perceived Emotion":    {CategoryAIVoice, ""},
	"Speaker Consistency":  {CategoryAIVoice, ""},
	"Pronunciation Score":  {CategoryAIVoice, "%"},
	"Interruption Latency": {CategoryAIVoice, ""},
}

// emotionStyles maps known categorical labels to a display style and emoji.
// Unknown labels fall back to ToneNeutral with the raw text preserved.
var emotionStyles = map[string]struct {
	Tone  Tone
	Emoji string
}{
	"happy":      {ToneGood, "😊"},
	"satisfied":  {ToneGood, "🙂"},
	"calm":       {ToneGood, "😌"},
	"neutral":    {ToneNeutral, "😐"},
	"confused":   {ToneBorderline, "😕"},
	"frustrated": {TonePoor, "😠"},
	"angry":      {TonePoor, "😡"},
	"sad":        {TonePoor, "😢"},
}

// Classify returns the category for a metric name, defaulting to
// conversation for anything not in the taxonomy.
func Classify(metricName string) Category {
	if entry, ok := metricTaxonomy[metricName]; ok {
		return entry.Category
	}
	return CategoryConversation
}

// UnitFor returns the declared display unit for a metric name, or "".
func UnitFor(metricName string) string {
	if entry, ok := metricTaxonomy[metricName]; ok {
		return entry.Unit
	}
	return ""
}
