package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"tipflow/internal/services"
)

const (
	// EventName is the trigger accepted on every intake path.
	EventName = "tip/video-uploaded"
	// WorkflowName labels runs created for EventName.
	WorkflowName = "tip-video-uploaded"
)

// Event is one "video uploaded" notification. TipID is empty when the upload
// is not yet associated with a tip.
type Event struct {
	TipID           string `json:"tipId,omitempty"`
	VideoResourceID string `json:"videoResourceId"`
	FileName        string `json:"fileName"`
}

// HasTip reports whether the event names a tip.
func (e Event) HasTip() bool {
	return e.TipID != ""
}

// Validate checks the fields every run depends on.
func (e Event) Validate() error {
	if strings.TrimSpace(e.VideoResourceID) == "" {
		return services.Wrap(services.ErrValidation, "ingest", "validate event", "videoResourceId is required", nil)
	}
	return nil
}

// ParseEvent decodes and validates event data. A blank tipId is treated as
// absent.
func ParseEvent(data []byte) (Event, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Event{}, services.Wrap(services.ErrValidation, "ingest", "parse event", "event data is empty", nil)
	}
	var raw struct {
		TipID           *string `json:"tipId"`
		VideoResourceID string  `json:"videoResourceId"`
		FileName        string  `json:"fileName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Event{}, services.Wrap(services.ErrValidation, "ingest", "parse event", "event data is not a valid upload event", err)
	}
	event := Event{
		VideoResourceID: strings.TrimSpace(raw.VideoResourceID),
		FileName:        strings.TrimSpace(raw.FileName),
	}
	if raw.TipID != nil {
		event.TipID = strings.TrimSpace(*raw.TipID)
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// Envelope is the named event wrapper used by the HTTP and broker intake.
type Envelope struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
	ID   string          `json:"id,omitempty"`
}

// ParseEnvelope decodes a named event and validates its data. Only EventName
// is accepted.
func ParseEnvelope(body []byte) (Envelope, Event, error) {
	var env Envelope
	if err := json.Unmarshal(bytes.TrimSpace(body), &env); err != nil {
		return Envelope{}, Event{}, services.Wrap(services.ErrValidation, "ingest", "parse envelope", "body is not a valid event envelope", err)
	}
	env.Name = strings.TrimSpace(env.Name)
	if env.Name != EventName {
		return env, Event{}, services.Wrap(services.ErrValidation, "ingest", "parse envelope", fmt.Sprintf("unsupported event %q", env.Name), nil)
	}
	event, err := ParseEvent(env.Data)
	if err != nil {
		return env, Event{}, err
	}
	return env, event, nil
}

// Marshal returns the canonical JSON stored as a run's event payload.
func (e Event) Marshal() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(data), nil
}
