package availability

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used in tests and redis-less local runs.
// It preserves the atomicity of the set-if-absent lock primitives.
type MemoryStore struct {
	mu       sync.Mutex
	flags    map[string]string
	locks    map[string]memLock
	jobLocks map[string]time.Time
	now      func() time.Time
}

type memLock struct {
	token   string
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flags:    make(map[string]string),
		locks:    make(map[string]memLock),
		jobLocks: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryStore) IsAvailable(ctx context.Context, driverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[driverID] == FlagAvailable, nil
}

func (s *MemoryStore) SetAvailable(ctx context.Context, driverID string, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if available {
		s.flags[driverID] = FlagAvailable
	} else {
		s.flags[driverID] = FlagBusy
	}
	return nil
}

func (s *MemoryStore) AcquireLock(ctx context.Context, driverID, token string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, held := s.locks[driverID]; held && s.now().Before(l.expires) {
		return false, nil
	}
	s.locks[driverID] = memLock{token: token, expires: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) ReleaseLock(ctx context.Context, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, driverID)
	return nil
}

func (s *MemoryStore) BusyDrivers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for id, flag := range s.flags {
		if flag == FlagBusy {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MemoryStore) AcquireJobLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, held := s.jobLocks[name]; held && s.now().Before(until) {
		return false, nil
	}
	s.jobLocks[name] = s.now().Add(ttl)
	return true, nil
}

// LockHeld reports whether a reservation lock currently exists. Test helper.
func (s *MemoryStore) LockHeld(driverID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, held := s.locks[driverID]
	return held && s.now().Before(l.expires)
}
