// Package history keeps the bounded in-memory conversation log.
//
// A conversation key is the channel ID in a guild context or the user ID in a
// DM context; the two never mix. Histories live for the process lifetime only
// and are never persisted. Concurrent commands on the same key interleave
// last-write-wins; the map itself is mutex-guarded.
package history

import "sync"

// maxTurns bounds each conversation to five user/assistant exchanges.
const maxTurns = 10

// Turn is one role-tagged message in a conversation.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Log is the per-conversation sliding window of turns.
type Log struct {
	mu            sync.Mutex
	conversations map[string][]Turn
}

// NewLog returns an empty conversation log.
func NewLog() *Log {
	return &Log{conversations: map[string][]Turn{}}
}

// Exchange appends one completed user/assistant pair for key, then evicts the
// oldest turns until the window bound holds. Insertion is always paired; a
// conversation is created lazily on first use.
func (l *Log) Exchange(key, prompt, answer string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	turns := append(l.conversations[key],
		Turn{Role: "user", Content: prompt},
		Turn{Role: "assistant", Content: answer},
	)
	if len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	l.conversations[key] = turns
}

// Turns returns a snapshot copy of the conversation for key, oldest first.
func (l *Log) Turns(key string) []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()

	src := l.conversations[key]
	out := make([]Turn, len(src))
	copy(out, src)
	return out
}
