// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package attest

import "sync"

// KeyedMutex serializes operations per string key. The engine and
// ledger use one per agent ID to compose multi-call store sequences
// (replace the live challenge, append a trace and bump its owner's
// counters) into atomic units without a global lock.
//
// Entries are reference-counted and removed when the last holder
// unlocks, so the table stays proportional to in-flight operations,
// not to the number of agents ever seen.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedMutex returns an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the lock for key and returns the corresponding unlock
// function. The caller must invoke the returned function exactly once.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyedLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
