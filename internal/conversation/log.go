package conversation

import (
	"sync"

	"github.com/harunnryd/renga/internal/model/contract"

	"github.com/oklog/ulid/v2"
)

// Log is the append-only ordered record of one conversation. The full
// snapshot is replayed to the model on every completion call.
type Log struct {
	mu   sync.Mutex
	id   string
	msgs []contract.Message
}

func New() *Log {
	return &Log{id: ulid.Make().String()}
}

func (l *Log) ID() string {
	return l.id
}

// Append adds messages to the end as one atomic batch. Prior entries are
// never mutated.
func (l *Log) Append(msgs ...contract.Message) {
	if len(msgs) == 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msgs...)
}

// Snapshot returns a copy of the full ordered sequence.
func (l *Log) Snapshot() []contract.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]contract.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Clear resets the log to empty. Used for explicit session reset only.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = nil
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}
