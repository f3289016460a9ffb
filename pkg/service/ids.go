package service

import (
	"strconv"
	"sync"
)

// sequence hands out numeric string ids continuing after the largest
// numeric id already stored.
type sequence struct {
	mu     sync.Mutex
	next   int
	loaded bool
	load   func() ([]string, error)
}

func newSequence(load func() ([]string, error)) *sequence {
	return &sequence{load: load}
}

func (s *sequence) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		ids, err := s.load()
		if err != nil {
			return "", err
		}
		maxID := 0
		for _, id := range ids {
			if n, err := strconv.Atoi(id); err == nil && n > maxID {
				maxID = n
			}
		}
		s.next = maxID + 1
		s.loaded = true
	}
	id := strconv.Itoa(s.next)
	s.next++
	return id, nil
}
