package transport

import (
	"sync"
	"time"
)

// Board is the results region served at GET /results. It keeps only the latest text.
type Board struct {
	mu      sync.RWMutex
	current ResultsResponse
	now     func() time.Time
}

// NewBoard creates an empty results board
func NewBoard() *Board {
	return &Board{now: time.Now}
}

// Show replaces the displayed text
func (b *Board) Show(attemptID, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = ResultsResponse{
		Text:      text,
		AttemptID: attemptID,
		UpdatedAt: b.now().UTC(),
	}
}

// Snapshot returns the displayed text
func (b *Board) Snapshot() ResultsResponse {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}
