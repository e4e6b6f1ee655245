package registry

import "sync"

// Observer is notified when a ledger starts tracking a new key.
type Observer[R any] interface {
	OnAdded(entry R)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc[R any] func(entry R)

// OnAdded calls f(entry).
func (f ObserverFunc[R]) OnAdded(entry R) { f(entry) }

// Subject manages observers and notifies them of events.
type Subject[R any] struct {
	mu        sync.RWMutex
	observers []Observer[R]
}

// AddObserver registers a new observer.
func (s *Subject[R]) AddObserver(o Observer[R]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// notifyAdded runs observers synchronously. Callers must not hold the
// ledger lock.
func (s *Subject[R]) notifyAdded(entry R) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.observers {
		o.OnAdded(entry)
	}
}
