package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/posterctl/internal/shared"
)

// EventType discriminates messages on the processing event stream.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventStepStart        EventType = "step_start"
	EventStepComplete     EventType = "step_complete"
	EventDesignGenerated  EventType = "design_generated"
	EventImageGenerated   EventType = "image_generated"
	EventPipelineComplete EventType = "pipeline_complete"
	EventPipelineError    EventType = "pipeline_error"
)

func (t EventType) Valid() bool {
	switch t {
	case EventConnected, EventStepStart, EventStepComplete, EventDesignGenerated,
		EventImageGenerated, EventPipelineComplete, EventPipelineError:
		return true
	}
	return false
}

// StreamEvent is one decoded message from the event stream.
//
// Result is kept raw because its shape depends on Type and Step; use the typed accessors to read it.
type StreamEvent struct {
	Type          EventType       `json:"type"`
	Message       string          `json:"message,omitempty"`
	JobID         string          `json:"jobId,omitempty"`
	Step          ProcessingStep  `json:"step,omitempty"`
	VariantNumber int             `json:"variantNumber,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Results       *JobResults     `json:"results,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// DecodeStreamEvent parses one event payload. Anything that is not a well-formed event of a known type
// is reported as [shared.ErrMalformedEvent].
func DecodeStreamEvent(data []byte) (StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return StreamEvent{}, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}

	if !ev.Type.Valid() {
		return StreamEvent{}, fmt.Errorf("%w: unknown type %q", shared.ErrMalformedEvent, ev.Type)
	}

	switch ev.Type {
	case EventStepStart, EventStepComplete:
		if ev.Step == "" {
			return StreamEvent{}, fmt.Errorf("%w: %s without step", shared.ErrMalformedEvent, ev.Type)
		}
		if !ev.Step.Valid() {
			return StreamEvent{}, fmt.Errorf("%w: unknown step %q", shared.ErrMalformedEvent, ev.Step)
		}
	case EventDesignGenerated, EventImageGenerated:
		if ev.VariantNumber < 1 {
			return StreamEvent{}, fmt.Errorf("%w: %s without variant number", shared.ErrMalformedEvent, ev.Type)
		}
	case EventPipelineComplete:
		if ev.Results == nil {
			return StreamEvent{}, fmt.Errorf("%w: pipeline_complete without results", shared.ErrMalformedEvent)
		}
	}

	return ev, nil
}

func (ev StreamEvent) hasResult() bool {
	r := bytes.TrimSpace(ev.Result)
	return len(r) > 0 && !bytes.Equal(r, []byte("null"))
}

// TranscriptionText returns result.text of a transcription step, if present.
func (ev StreamEvent) TranscriptionText() (string, bool) {
	if !ev.hasResult() {
		return "", false
	}
	var r struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(ev.Result, &r); err != nil || r.Text == "" {
		return "", false
	}
	return r.Text, true
}

// CopyResult decodes the result of a copy_generation step.
func (ev StreamEvent) CopyResult() (*CopyContent, bool) {
	if !ev.hasResult() {
		return nil, false
	}
	var c CopyContent
	if err := json.Unmarshal(ev.Result, &c); err != nil {
		return nil, false
	}
	return &c, true
}

// ImageResult decodes the {url, key} result of an image-producing step.
func (ev StreamEvent) ImageResult() (url, key string, ok bool) {
	if !ev.hasResult() {
		return "", "", false
	}
	var r struct {
		URL string `json:"url"`
		Key string `json:"key"`
	}
	if err := json.Unmarshal(ev.Result, &r); err != nil || r.URL == "" {
		return "", "", false
	}
	return r.URL, r.Key, true
}

// DesignResult decodes the design carried by design_generated. The event's variant number wins over the payload's.
func (ev StreamEvent) DesignResult() (Design, bool) {
	if !ev.hasResult() {
		return Design{}, false
	}
	var d Design
	if err := json.Unmarshal(ev.Result, &d); err != nil {
		return Design{}, false
	}
	d.VariantNumber = ev.VariantNumber
	return d, true
}

// RenderResult decodes the {imageUrl, dimensions} result of image_generated.
func (ev StreamEvent) RenderResult() (imageURL string, dims *Dimensions, ok bool) {
	if !ev.hasResult() {
		return "", nil, false
	}
	var r struct {
		ImageURL   string      `json:"imageUrl"`
		Dimensions *Dimensions `json:"dimensions"`
	}
	if err := json.Unmarshal(ev.Result, &r); err != nil {
		return "", nil, false
	}
	return r.ImageURL, r.Dimensions, true
}
