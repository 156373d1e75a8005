// Package report formats decode results. Nothing in the decoder prints;
// everything user visible about a payload goes through an Event.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/danmuck/thriftsniff/internal/capture"
	"github.com/danmuck/thriftsniff/internal/protocol"
	"github.com/danmuck/thriftsniff/internal/protocol/schema"
)

// Event is the decode result for one captured payload. Message may be set
// together with Err when decoding failed after the header was read.
type Event struct {
	ID         uuid.UUID
	Payload    capture.Payload
	Message    *protocol.Message
	Err        error
	Annotation *schema.Annotation
	Elapsed    time.Duration
}

func NewEvent(p capture.Payload, msg *protocol.Message, err error) Event {
	return Event{ID: uuid.New(), Payload: p, Message: msg, Err: err}
}

// Method returns the decoded method name or "" when the header was not
// reached.
func (e Event) Method() string {
	if e.Message == nil {
		return ""
	}
	return e.Message.Method
}

func (e Event) Kind() protocol.MessageKind {
	if e.Message == nil {
		return protocol.KindUnknown
	}
	return e.Message.Kind
}
