package tool

import "sync"

// pathLocks provides per-path mutual exclusion for file handlers.
// Keyed mutex pattern: each path gets its own mutex, so writes to
// different files proceed concurrently while writes to the same file
// serialize.
type pathLocks struct {
	mu    sync.Mutex             // Guards the locks map itself
	locks map[string]*sync.Mutex // Per-path mutexes
}

func newPathLocks() *pathLocks {
	return &pathLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the per-path mutex, creating it on first access.
func (p *pathLocks) Lock(path string) {
	p.mu.Lock()
	pathLock, exists := p.locks[path]
	if !exists {
		pathLock = &sync.Mutex{}
		p.locks[path] = pathLock
	}
	p.mu.Unlock()

	// Acquire the per-path lock outside the manager lock to avoid contention.
	pathLock.Lock()
}

// Unlock releases the per-path mutex.
func (p *pathLocks) Unlock(path string) {
	p.mu.Lock()
	pathLock, exists := p.locks[path]
	p.mu.Unlock()

	if exists {
		pathLock.Unlock()
	}
}
