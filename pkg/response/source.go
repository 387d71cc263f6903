// Package response abstracts where raw AI reply text comes from. The real
// source is an IDE extraction service outside this module; implementations
// here cover tests and file-fed worker runs.
package response

import (
	"context"
	"sync"
)

// Source returns the latest raw AI response text. Implementations must honor
// the context deadline; an empty string with nil error means the source timed
// out without producing a reply.
type Source interface {
	LatestResponse(ctx context.Context) (string, error)
}

// StaticSource serves responses from a fixed queue, one per call, repeating
// the last entry once the queue is exhausted. Safe for concurrent use.
type StaticSource struct {
	mu        sync.Mutex
	responses []string
	index     int
}

func NewStaticSource(responses ...string) *StaticSource {
	return &StaticSource{responses: responses}
}

func (s *StaticSource) LatestResponse(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.responses) == 0 {
		return "", nil
	}

	resp := s.responses[s.index]
	if s.index < len(s.responses)-1 {
		s.index++
	}

	return resp, nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) LatestResponse(ctx context.Context) (string, error) {
	return f(ctx)
}
