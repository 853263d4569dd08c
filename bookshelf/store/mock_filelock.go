package store

import (
	"context"
	"sync"
	"time"
)

// MockFileLock is a FileLock for tests that records how it was used.
type MockFileLock struct {
	mu       sync.Mutex
	held     bool
	LockErr  error
	Attempts int
	Unlocks  int
}

// TryLockContext implements FileLock.TryLockContext
func (m *MockFileLock) TryLockContext(_ context.Context, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Attempts++
	if m.LockErr != nil {
		return false, m.LockErr
	}
	if m.held {
		return false, nil
	}
	m.held = true
	return true, nil
}

// Unlock implements FileLock.Unlock
func (m *MockFileLock) Unlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Unlocks++
	m.held = false
	return nil
}

// Held reports whether the lock is currently taken
func (m *MockFileLock) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held
}

// MockFileLockFactory hands out one MockFileLock per path.
type MockFileLockFactory struct {
	mu    sync.Mutex
	locks map[string]*MockFileLock

	// LockErr is copied into every lock created afterwards
	LockErr error
}

// NewMockFileLockFactory creates an empty factory
func NewMockFileLockFactory() *MockFileLockFactory {
	return &MockFileLockFactory{locks: make(map[string]*MockFileLock)}
}

// New implements FileLockFactory.New
func (f *MockFileLockFactory) New(path string) FileLock {
	f.mu.Lock()
	defer f.mu.Unlock()

	if lock, ok := f.locks[path]; ok {
		return lock
	}
	lock := &MockFileLock{LockErr: f.LockErr}
	f.locks[path] = lock
	return lock
}

// Lock returns the lock created for path, if any
func (f *MockFileLockFactory) Lock(path string) *MockFileLock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.locks[path]
}
