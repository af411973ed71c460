package agent

import (
	"context"
	"fmt"
	"sync"
)

// Scripted replays a fixed list of replies, one per call. It backs the offline
// demo mode and tests.
type Scripted struct {
	mu       sync.Mutex
	replies  []string
	next     int
	Received [][]Message
	// Fallback is returned once the script is exhausted; when empty an
	// exhausted script returns an error.
	Fallback string
}

func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

func (s *Scripted) Reply(_ context.Context, messages []Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Received = append(s.Received, append([]Message(nil), messages...))
	if s.next >= len(s.replies) {
		if s.Fallback != "" {
			return s.Fallback, nil
		}
		return "", fmt.Errorf("agent: script exhausted after %d replies", len(s.replies))
	}
	reply := s.replies[s.next]
	s.next++
	return reply, nil
}

// Calls returns the number of replies requested so far.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Received)
}

// Last returns the messages passed to the most recent call.
func (s *Scripted) Last() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Received) == 0 {
		return nil
	}
	return s.Received[len(s.Received)-1]
}
