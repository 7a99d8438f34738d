package schema

import (
	"fmt"
	"sync/atomic"
)

var messageSeq int64

// nextMessageID produces a process-unique, human-inspectable message id.
// Messages are not persisted, so a monotonically increasing counter (rather
// than a UUID, which spec.md reserves for run ids) is sufficient and keeps
// test fixtures' output diffable.
func nextMessageID(prefix string) string {
	n := atomic.AddInt64(&messageSeq, 1)
	return fmt.Sprintf("%s-%d", prefix, n)
}

// Message is the typed envelope passed between artifacts (spec.md §3).
// Content is a structured value — typically map[string]interface{} or
// []interface{} for a decoded JSON document, but any value
// encoding/json and the schema validator both accept is permitted.
type Message struct {
	ID      string
	Content interface{}
	Schema  Schema
}

// NewMessage builds a message with a generated id. idPrefix is typically
// the producing artifact's id, so ids remain traceable to their origin
// without a central allocator.
func NewMessage(idPrefix string, content interface{}, s Schema) *Message {
	return &Message{ID: nextMessageID(idPrefix), Content: content, Schema: s}
}

// Validate checks Content against the registry's compiled document for
// Schema. Per spec.md §3's invariant, this must succeed before the message
// is handed to the next stage; the executor calls this immediately after a
// component produces a message (spec.md §4.5 step 5).
func (m *Message) Validate(reg *Registry) error {
	if reg == nil {
		reg = Default()
	}
	return reg.Validate(m.Schema, m.Content)
}
