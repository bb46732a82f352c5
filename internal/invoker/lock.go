package invoker

import "sync"

// LockManager manages per-pipeline locks so a pipeline never has two runs
// in flight at once.
//
// Two-level locking: the outer mutex protects the locks map itself, and
// each pipeline has its own mutex for the actual run lock. Different
// pipelines can run concurrently.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLockManager creates a new lock manager
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]*sync.Mutex),
	}
}

// TryLock attempts to acquire the run lock for the given pipeline.
// Non-blocking: returns false immediately when a run is already in flight.
func (lm *LockManager) TryLock(pipeline string) bool {
	lm.mu.Lock()
	lock, exists := lm.locks[pipeline]
	if !exists {
		lock = &sync.Mutex{}
		lm.locks[pipeline] = lock
	}
	lm.mu.Unlock()

	return lock.TryLock()
}

// Unlock releases the run lock for the given pipeline.
// Safe to call for a pipeline that was never locked (no-op).
func (lm *LockManager) Unlock(pipeline string) {
	lm.mu.Lock()
	lock := lm.locks[pipeline]
	lm.mu.Unlock()

	if lock != nil {
		lock.Unlock()
	}
}
