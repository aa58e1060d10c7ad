package llm

import (
	"context"
	"sync"
)

// Stub is a deterministic Generator for tests. Responses are returned in
// order; the last one repeats once the script is exhausted. A nil script
// yields ErrGeneration on every call.
type Stub struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
	prompts   []Request
}

// NewStub creates a stub that replays the given responses.
func NewStub(responses ...string) *Stub {
	return &Stub{responses: responses}
}

// NewFailingStub creates a stub that always returns err.
func NewFailingStub(err error) *Stub {
	return &Stub{err: err}
}

// Generate returns the next scripted response.
func (s *Stub) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, req)
	s.calls++

	if s.err != nil {
		return "", s.err
	}
	if len(s.responses) == 0 {
		return "", ErrGeneration
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

// Calls returns how many times Generate was invoked.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Prompts returns a copy of every request seen so far.
func (s *Stub) Prompts() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.prompts))
	copy(out, s.prompts)
	return out
}
