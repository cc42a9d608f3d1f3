// Package notify holds transient user-facing notices.
package notify

import (
	"sync"
	"time"
)

type Level string

const (
	Info  Level = "info"
	Error Level = "error"
)

// Notice is one transient message shown to the user.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// DefaultCapacity is used when NewQueue is given a non-positive capacity.
const DefaultCapacity = 50

// Queue is a bounded FIFO. When full, the oldest notice is dropped.
type Queue struct {
	mu    sync.Mutex
	items []Notice
	cap   int
	now   func() time.Time
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{cap: capacity, now: time.Now}
}

// Push appends a notice stamped with the current time.
func (q *Queue) Push(level Level, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == q.cap {
		copy(q.items, q.items[1:])
		q.items = q.items[:len(q.items)-1]
	}
	q.items = append(q.items, Notice{Level: level, Message: msg, Time: q.now().UTC()})
}


// Drain returns all pending notices, oldest first, and empties the queue.
func (q *Queue) Drain() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	if out == nil {
		out = []Notice{}
	}
	q.items = nil
	return out
}

// Len reports the number of pending notices.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
