package tts

import "sync"

// AudioStore keeps synthesized audio payloads in memory keyed by id so they
// can be fetched once over /audio/{id}. Bounded: when the cap is reached the
// oldest entry is evicted.
type AudioStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	order   []string
	max     int
}

// NewAudioStore creates an audio store holding at most max entries.
func NewAudioStore(max int) *AudioStore {
	if max <= 0 {
		max = 256
	}
	return &AudioStore{
		entries: make(map[string][]byte),
		max:     max,
	}
}

// Put stores an audio payload under id, evicting the oldest entry when full.
func (s *AudioStore) Put(id string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[id]; !exists {
		for len(s.order) >= s.max {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.entries, oldest)
		}
		s.order = append(s.order, id)
	}
	s.entries[id] = data
}

// Get returns the audio payload for id.
func (s *AudioStore) Get(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.entries[id]
	return data, ok
}

// Len returns the number of stored payloads.
func (s *AudioStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
