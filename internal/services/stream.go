package services

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/desertthunder/posterctl/internal/shared"
)

// Frame is one dispatched server-sent event.
type Frame struct {
	Event string
	ID    string
	Data  []byte
}

// EventStream reads server-sent events from a long-lived response body.
//
// Frames can carry whole HTML documents, so lines are read without a length cap.
type EventStream struct {
	body      io.ReadCloser
	r         *bufio.Reader
	closeOnce sync.Once
	closeErr  error
}

// NewEventStream wraps body. Closing the stream closes body.
func NewEventStream(body io.ReadCloser) *EventStream {
	return &EventStream{body: body, r: bufio.NewReaderSize(body, 32*1024)}
}

// Next blocks until the next frame is complete.
//
// A frame without data lines is skipped. At end of input any partial frame is discarded and the
// returned error wraps [shared.ErrStreamClosed].
func (s *EventStream) Next() (Frame, error) {
	var (
		frame   Frame
		data    bytes.Buffer
		hasData bool
	)

	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				return Frame{}, fmt.Errorf("%w: %w", shared.ErrStreamClosed, io.EOF)
			}
			return Frame{}, fmt.Errorf("%w: %w", shared.ErrStreamClosed, err)
		}
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 {
			if !hasData {
				frame = Frame{}
				continue
			}
			frame.Data = data.Bytes()
			return frame, nil
		}

		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))

		switch string(field) {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.Write(value)
			hasData = true
		case "event":
			frame.Event = string(value)
		case "id":
			frame.ID = string(value)
		}
	}
}

// Close releases the connection. It is safe to call more than once and from another goroutine.
func (s *EventStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.body.Close()
	})
	return s.closeErr
}
