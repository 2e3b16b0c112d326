package stim

// Queue is an interactive source for the scope frontends. Actions enqueue
// control words; between enqueued words the last word is re-issued, which
// the decoder treats as an idempotent rewrite of the same channel.
//
// Queue is driven from the rig's single update loop and is not safe for
// concurrent use.
type Queue struct {
	pending []queued
	last    uint8
}

type queued struct {
	word  uint8
	reset bool
}

// NewQueue creates an empty queue. Until a word is pushed it issues the
// zero word, which leaves every channel disabled.
func NewQueue() *Queue {
	return &Queue{}
}

// Push enqueues a control word for the next free tick.
func (q *Queue) Push(word uint8) {
	q.pending = append(q.pending, queued{word: word})
}

// PushReset enqueues one tick with the reset flag asserted.
func (q *Queue) PushReset() {
	q.pending = append(q.pending, queued{reset: true})
}

// Pending returns the number of queued entries not yet issued.
func (q *Queue) Pending() int {
	return len(q.pending)
}

func (q *Queue) Next() (uint8, bool, bool) {
	if len(q.pending) > 0 {
		entry := q.pending[0]
		q.pending = q.pending[1:]
		if !entry.reset {
			q.last = entry.word
		}
		return entry.word, entry.reset, true
	}
	return q.last, false, true
}
