package score

import "sync"

// meanStore is a running mean fed concurrently by channel workers.
type meanStore struct {
	sq, abs float64
	count   int
	mu      sync.Mutex
}

func (s *meanStore) add(sq, abs float64, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sq += sq
	s.abs += abs
	s.count += count
}

func (s *meanStore) means() (mse, mae float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return 0, 0
	}
	return s.sq / float64(s.count), s.abs / float64(s.count)
}
