// Package conversation owns the ordered, append-only message log of an
// assistant session.
package conversation

import (
	"fmt"
	"sync"
	"time"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// Sink receives every message after it is appended, e.g. a persistent journal.
type Sink interface {
	RecordMessage(sessionID string, seq int, msg types.Message) error
}

// Log is an append-only message log safe for concurrent use. Messages are
// immutable once appended and the log never shrinks.
type Log struct {
	mu        sync.RWMutex
	sessionID string
	messages  []types.Message
	sink      Sink
	now       func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithSink journals each appended message.
func WithSink(s Sink) Option {
	return func(l *Log) { l.sink = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// NewLog creates an empty log for sessionID.
func NewLog(sessionID string, opts ...Option) *Log {
	l := &Log{sessionID: sessionID, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SessionID returns the session the log belongs to.
func (l *Log) SessionID() string { return l.sessionID }

// Append adds msg at the end of the log. A zero timestamp is filled in.
// Sink failures are logged and never undo the append.
func (l *Log) Append(msg types.Message) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if msg.Kind == "" {
		msg.Kind = types.KindText
	}
	msg = msg.Clone()

	l.mu.Lock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = l.now()
	}
	l.messages = append(l.messages, msg)
	seq := len(l.messages) - 1
	sink := l.sink
	l.mu.Unlock()

	logging.SessionDebug("session %s: appended %s %s message #%d", l.sessionID, msg.Role, msg.Kind, seq)
	if sink != nil {
		if err := sink.RecordMessage(l.sessionID, seq, msg); err != nil {
			logging.StoreWarn("journal message #%d of %s: %v", seq, l.sessionID, err)
		}
	}
	return nil
}

// Current returns a snapshot copy of the log in insertion order.
func (l *Log) Current() []types.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]types.Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the most recent message.
func (l *Log) Last() (types.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return types.Message{}, false
	}
	return l.messages[len(l.messages)-1].Clone(), true
}

// Restore seeds an empty log from a journal without re-journaling.
func (l *Log) Restore(msgs []types.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.messages) > 0 {
		return fmt.Errorf("restore into non-empty log (%d messages)", len(l.messages))
	}
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("restore message: %w", err)
		}
		l.messages = append(l.messages, m.Clone())
	}
	return nil
}
