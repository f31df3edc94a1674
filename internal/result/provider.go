package result

import (
	"encoding/json"
	"fmt"
)

// Provider platforms the backend places calls through.
const (
	PlatformRetell  = "retell"
	PlatformVapi    = "vapi"
	PlatformGeneric = "generic"
)

// CallPayload is the provider-specific slice of an evaluation result. Each
// platform reports recordings and durations in its own shape; the console
// only cares about two facts, so every variant answers the same two
// questions.
type CallPayload interface {
	// RecordingURL returns a directly playable recording URL, or "" when the
	// platform stores audio by object key instead.
	RecordingURL() string

	// ReportedDuration returns the provider-reported call duration in
	// seconds, or 0 when the platform did not report one.
	ReportedDuration() float64
}

// RetellPayload is the call detail shape reported for retell calls.
type RetellPayload struct {
	CallID         string  `json:"call_id"`
	RecordingURLs  string  `json:"recording_url"`
	DurationMs     float64 `json:"duration_ms"`
	DisconnectedBy string  `json:"disconnection_reason,omitempty"`
}

func (p *RetellPayload) RecordingURL() string { return p.RecordingURLs }

func (p *RetellPayload) ReportedDuration() float64 { return p.DurationMs / 1000.0 }

// VapiPayload is the call detail shape reported for vapi calls.
type VapiPayload struct {
	CallID      string  `json:"id"`
	MonoURL     string  `json:"recordingUrl"`
	StereoURL   string  `json:"stereoRecordingUrl,omitempty"`
	Duration    float64 `json:"durationSeconds"`
	EndedReason string  `json:"endedReason,omitempty"`
}

// RecordingURL prefers the stereo recording when vapi provides both.
func (p *VapiPayload) RecordingURL() string {
	if p.StereoURL != "" {
		return p.StereoURL
	}
	return p.MonoURL
}

func (p *VapiPayload) ReportedDuration() float64 { return p.Duration }

// GenericPayload covers calls recorded by the platform itself: audio lives in
// object storage under a key and the result's duration_seconds field is the
// only duration estimate.
type GenericPayload struct {
	StorageKey string `json:"storage_key"`
}

func (p *GenericPayload) RecordingURL() string { return "" }

func (p *GenericPayload) ReportedDuration() float64 { return 0 }

// UnknownPayload is the raw passthrough for platforms this build does not
// recognize. It answers nothing but keeps the payload intact for display.
type UnknownPayload struct {
	Platform string
	Raw      json.RawMessage
}

func (p *UnknownPayload) RecordingURL() string { return "" }

func (p *UnknownPayload) ReportedDuration() float64 { return 0 }

// DecodeCallPayload interprets the raw call payload according to the
// provider platform tag. Unknown platforms never fail: they decode to an
// UnknownPayload carrying the raw bytes.
func DecodeCallPayload(platform string, raw json.RawMessage) (CallPayload, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	switch platform {
	case PlatformRetell:
		var p RetellPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode retell payload: %w", err)
		}
		return &p, nil

	case PlatformVapi:
		var p VapiPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode vapi payload: %w", err)
		}
		return &p, nil

	case PlatformGeneric:
		var p GenericPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode generic payload: %w", err)
		}
		return &p, nil

	default:
		return &UnknownPayload{Platform: platform, Raw: raw}, nil
	}
}

// Payload decodes the result's call payload. Results without a payload
// return (nil, nil).
func (r *EvaluationResult) Payload() (CallPayload, error) {
	return DecodeCallPayload(r.ProviderPlatform, r.CallPayload)
}
