// Package fishnet runs a local UCI engine as an evaluation contributor:
// positions worth deepening are queued, analyzed, and fed back through
// the regular submission pipeline.
package fishnet

import (
	"sync"

	"github.com/fitztrev/lila-ws/internal/chess"
)

// Queue holds positions waiting for local analysis. It deduplicates by
// position identity and drops the oldest entry when full.
type Queue struct {
	mu      sync.Mutex
	queue   []chess.Pos
	seen    map[chess.ID]bool
	maxSize int
}

// NewQueue creates a queue with the given max size.
func NewQueue(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Queue{
		queue:   make([]chess.Pos, 0, maxSize),
		seen:    make(map[chess.ID]bool),
		maxSize: maxSize,
	}
}

// Enqueue adds a position if not already queued.
// Returns true if the position was added.
func (q *Queue) Enqueue(pos chess.Pos) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.seen[pos.ID] {
		return false
	}

	if len(q.queue) >= q.maxSize {
		delete(q.seen, q.queue[0].ID)
		q.queue = q.queue[1:]
	}

	q.queue = append(q.queue, pos)
	q.seen[pos.ID] = true
	return true
}

// Dequeue returns the next position (FIFO) or false if empty.
func (q *Queue) Dequeue() (chess.Pos, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.queue) == 0 {
		return chess.Pos{}, false
	}

	pos := q.queue[0]
	q.queue = q.queue[1:]
	delete(q.seen, pos.ID)
	return pos, true
}

// Len returns current queue size.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queue)
}

// Contains returns true if the position is already queued.
func (q *Queue) Contains(pos chess.Pos) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen[pos.ID]
}
