// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package anchor

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Service for tests and for running the
// service without a ledger connection. References have the form
// memtx_<n> and resolve to the exact submitted payload.
type Memory struct {
	mu        sync.Mutex
	payloads  map[string][]byte
	next      int
	attempts  int
	submitErr error
}

// NewMemory returns an empty in-memory anchor service.
func NewMemory() *Memory {
	return &Memory{payloads: make(map[string][]byte)}
}

var _ Service = (*Memory)(nil)

// FailSubmits makes every subsequent Submit return err. Pass nil to
// restore normal operation.
func (m *Memory) FailSubmits(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitErr = err
}

// SubmissionCount returns how many payloads have been recorded.
func (m *Memory) SubmissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

// AttemptCount returns how many Submit calls have been made, failed
// ones included.
func (m *Memory) AttemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *Memory) Submit(ctx context.Context, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	if m.submitErr != nil {
		return "", m.submitErr
	}

	reference := fmt.Sprintf("memtx_%d", m.next)
	m.next++
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.payloads[reference] = stored
	return reference, nil
}

func (m *Memory) Resolve(ctx context.Context, reference string) (bool, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, ok := m.payloads[reference]
	if !ok {
		return false, nil, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return true, out, nil
}
