package result

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status is the lifecycle state of an evaluation result. The pipeline moves
// roughly queued -> call_* -> transcribing -> evaluating -> completed/failed,
// though the backend may skip stages for short calls.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusCallInitiating Status = "call_initiating"
	StatusCallConnecting Status = "call_connecting"
	StatusCallInProgress Status = "call_in_progress"
	StatusCallEnded      Status = "call_ended"
	StatusTranscribing   Status = "transcribing"
	StatusEvaluating     Status = "evaluating"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// Terminal reports whether no further automatic polling should occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Known reports whether the status is one the console understands. Unknown
// statuses are treated as non-terminal so polling keeps going.
func (s Status) Known() bool {
	switch s {
	case StatusQueued, StatusCallInitiating, StatusCallConnecting,
		StatusCallInProgress, StatusCallEnded, StatusTranscribing,
		StatusEvaluating, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

var statusOrder = map[Status]int{
	StatusQueued:         0,
	StatusCallInitiating: 1,
	StatusCallConnecting: 2,
	StatusCallInProgress: 3,
	StatusCallEnded:      4,
	StatusTranscribing:   5,
	StatusEvaluating:     6,
	StatusCompleted:      7,
	StatusFailed:         7,
}

// Progress returns the pipeline stage index for progress displays. Both
// terminal states share the final stage; unknown statuses report ok=false.
func (s Status) Progress() (int, bool) {
	n, ok := statusOrder[s]
	return n, ok
}

// Speaker identifies which side of the call a transcript segment belongs to.
type Speaker string

const (
	SpeakerAgent  Speaker = "agent"
	SpeakerCaller Speaker = "caller"
)

// SpeakerSegment is a timestamped, speaker-attributed slice of the call
// transcript. Segments are produced once by the transcription stage and are
// immutable afterwards; within a result they are sorted ascending by Start
// and do not overlap.
type SpeakerSegment struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// MetricType describes how a metric value should be interpreted and rendered.
type MetricType string

const (
	MetricBoolean     MetricType = "boolean"
	MetricRating      MetricType = "rating"
	MetricNumber      MetricType = "number"
	MetricCategorical MetricType = "categorical"
)

// MetricValue is one scored metric as returned by the evaluation backend.
type MetricValue struct {
	Name  string      `json:"metric_name"`
	Type  MetricType  `json:"type"`
	Value interface{} `json:"value"`
}

// MetricScores is an ordered mapping from metric id to MetricValue. JSON
// object key order is significant for display grouping, so decoding walks the
// token stream instead of going through a map.
type MetricScores struct {
	IDs    []string
	Values map[string]MetricValue
}

// UnmarshalJSON decodes a JSON object while preserving key order.
func (m *MetricScores) UnmarshalJSON(data []byte) error {
	m.IDs = nil
	m.Values = make(map[string]MetricValue)

	// Tolerate explicit null (scores absent while evaluation runs).
	if string(data) == "null" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("metric_scores: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("metric_scores: non-string key %v", keyTok)
		}

		var mv MetricValue
		if err := dec.Decode(&mv); err != nil {
			return fmt.Errorf("metric_scores[%s]: %w", key, err)
		}
		if mv.Name == "" {
			mv.Name = key
		}

		if _, dup := m.Values[key]; !dup {
			m.IDs = append(m.IDs, key)
		}
		m.Values[key] = mv
	}

	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// MarshalJSON re-emits the scores in their original insertion order.
func (m MetricScores) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, id := range m.IDs {
		if i > 0 {
			buf = append(buf, ',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(m.Values[id])
		if err != nil {
			return nil, err
		}
		buf = append(buf, k...)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

// Len returns the number of scored metrics.
func (m MetricScores) Len() int { return len(m.IDs) }

// EvaluationResult is one simulated call evaluation as reported by the
// backend. Optional fields stay nil/zero until the corresponding pipeline
// stage has produced them.
type EvaluationResult struct {
	ID              string           `json:"id"`
	ResultLabel     string           `json:"result_label"`
	Status          Status           `json:"status"`
	DurationSeconds float64          `json:"duration_seconds,omitempty"`
	Transcript      string           `json:"transcript,omitempty"`
	Segments        []SpeakerSegment `json:"segments,omitempty"`
	MetricScores    MetricScores     `json:"metric_scores,omitempty"`
	ErrorMessage    string           `json:"error_message,omitempty"`
	AudioRef        string           `json:"audio_ref,omitempty"`

	ProviderPlatform string          `json:"provider_platform,omitempty"`
	CallPayload      json.RawMessage `json:"call_payload,omitempty"`
}

// HasAudio reports whether the result carries any audio reference at all.
func (r *EvaluationResult) HasAudio() bool {
	return r != nil && r.AudioRef != ""
}
