package session

import (
	"sync"
	"time"
)

// Sender identifies who produced a turn.
type Sender string

const (
	User      Sender = "user"
	Assistant Sender = "assistant"
)

// Turn is one message in the conversation.
type Turn struct {
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Log is an append-only conversation history. It keeps every turn in
// insertion order with no deduplication or cap.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

func (l *Log) Append(t Turn) {
	l.mu.Lock()
	l.turns = append(l.turns, t)
	l.mu.Unlock()
}

// All returns a snapshot of the turns.
func (l *Log) All() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.turns = nil
	l.mu.Unlock()
}
