package settings

import (
	"log"
	"sync"
)

// Saver serializes background writes of the settings and cache files. Each
// Save replaces any not-yet-written snapshot for the same file, so a burst
// of edits collapses into one write and the newest snapshot always wins.
type Saver struct {
	mu      sync.Mutex
	pending map[string]any

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSaver starts the background writer goroutine.
func NewSaver() *Saver {
	s := &Saver{
		pending: make(map[string]any),
		kick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Save queues a snapshot for path. The value must not be mutated by the
// caller afterwards; hand in a copy.
func (s *Saver) Save(path string, value any) {
	s.mu.Lock()
	s.pending[path] = value
	s.mu.Unlock()

	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Saver) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			s.flush()
			return
		case <-s.kick:
			s.flush()
		}
	}
}

func (s *Saver) flush() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			return
		}
		batch := s.pending
		s.pending = make(map[string]any)
		s.mu.Unlock()

		for path, value := range batch {
			if err := writeJSON(path, value); err != nil {
				// Persistence is best effort; the in-memory state stays
				// authoritative.
				log.Printf("WARN: save %s: %v", path, err)
			}
		}
	}
}

// Close stops the writer after flushing everything still queued.
func (s *Saver) Close() {
	close(s.done)
	s.wg.Wait()
}
