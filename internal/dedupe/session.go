package dedupe

import (
	"context"
	"sync"
)

// Session remembers the last successful Result. A failed run leaves the
// previous Result in place.
type Session struct {
	mu   sync.RWMutex
	last *Result
}

// Process runs e and, on success, replaces the remembered Result.
func (s *Session) Process(ctx context.Context, e *Engine, crmPath, candidatesPath string) (*Result, error) {
	res, err := e.Run(ctx, crmPath, candidatesPath)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.last = res
	s.mu.Unlock()

	return res, nil
}

// Last returns the most recent successful Result, or nil.
func (s *Session) Last() *Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}
