// Package locking provides the in-process coordination primitives for the
// ledger: per-receipt critical sections and a per-period gate that lets
// ClosePeriod drain in-flight operations without racing them.
package locking

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyedMutex serializes mutating operations per entity id. Entries are
// reference counted and removed once the last holder releases them, so the
// map does not grow with the number of receipts ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex creates a new keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[uuid.UUID]*keyedEntry)}
}

// Lock acquires the mutex for the given id, blocking until available.
// The returned function releases it.
func (k *KeyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	entry, ok := k.locks[id]
	if !ok {
		entry = &keyedEntry{}
		k.locks[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}

// PeriodGate coordinates ledger operations against period close. Ledger
// operations enter as readers; ClosePeriod acquires the writer side and
// therefore observes zero in-flight operations. Writer acquisition is
// bounded: if in-flight operations do not drain within the wait window the
// close fails retryably instead of blocking the register.
type PeriodGate struct {
	mu    sync.Mutex
	gates map[uuid.UUID]*sync.RWMutex
}

// NewPeriodGate creates a new period gate
func NewPeriodGate() *PeriodGate {
	return &PeriodGate{gates: make(map[uuid.UUID]*sync.RWMutex)}
}

func (g *PeriodGate) gate(periodID uuid.UUID) *sync.RWMutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	rw, ok := g.gates[periodID]
	if !ok {
		rw = &sync.RWMutex{}
		g.gates[periodID] = rw
	}
	return rw
}

// Enter registers an in-flight ledger operation for the period. The returned
// function must be called when the operation commits or fails.
func (g *PeriodGate) Enter(periodID uuid.UUID) func() {
	rw := g.gate(periodID)
	rw.RLock()
	return rw.RUnlock
}

// BeginClose acquires exclusive access to the period for closing. It polls
// for up to wait; false means in-flight operations did not drain in time and
// the caller should surface a retryable busy error.
func (g *PeriodGate) BeginClose(periodID uuid.UUID, wait time.Duration) (func(), bool) {
	rw := g.gate(periodID)
	deadline := time.Now().Add(wait)
	for {
		if rw.TryLock() {
			return rw.Unlock, true
		}
		if time.Now().After(deadline) {
			return nil, false
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Forget drops the gate for a closed period.
func (g *PeriodGate) Forget(periodID uuid.UUID) {
	g.mu.Lock()
	delete(g.gates, periodID)
	g.mu.Unlock()
}
