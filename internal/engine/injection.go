// Package engine houses the Orchestrator and its phase handlers: phase sequencing,
// bounded retry/revise loops, injection checkpoints, and best-seen tracking, grounded on internal/brain/orchestrator.go's HandleEngagement.
package engine

import (
	"context"
	"errors"
	"sync"
)

// InjectionKind is a mid-turn command a human can issue while a turn is in flight.
type InjectionKind string

const (
	InjectionCancel     InjectionKind = "cancel"
	InjectionRedirect   InjectionKind = "redirect"
	InjectionAddContext InjectionKind = "add_context"
)

var ErrNoActiveTurn = errors.New("no active turn for session")

// Injection is one queued command, consumed at the Orchestrator's next checkpoint (the
// engine never interrupts a phase mid-execution).
type Injection struct {
	Kind    InjectionKind
	Payload string // redirect instruction text, or context to add; unused for cancel
}

// InjectionManager holds one pending-injection queue per session. The Orchestrator
// drains a session's queue at two checkpoints: once after Phase 1/1.5, and before each
// Phase 4/5 execution pass of the validation loop. No checkpoint runs before the
// individual LLM or tool calls inside a phase.
type InjectionManager struct {
	mu     sync.Mutex
	queues map[string][]Injection
	active map[string]bool
}

func NewInjectionManager() *InjectionManager {
	return &InjectionManager{
		queues: make(map[string][]Injection),
		active: make(map[string]bool),
	}
}

// MarkActive records that sessionID has a turn in flight, so Enqueue can reject
// injections for sessions with nothing to interrupt.
func (m *InjectionManager) MarkActive(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[sessionID] = true
}

func (m *InjectionManager) MarkInactive(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, sessionID)
	delete(m.queues, sessionID)
}

// Enqueue adds an injection to sessionID's queue. ADD_CONTEXT and REDIRECT stack; a
// CANCEL supersedes everything queued before it, since ending the turn makes prior
// redirects moot.
func (m *InjectionManager) Enqueue(ctx context.Context, sessionID string, inj Injection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active[sessionID] {
		return ErrNoActiveTurn
	}
	if inj.Kind == InjectionCancel {
		m.queues[sessionID] = []Injection{inj}
		return nil
	}
	m.queues[sessionID] = append(m.queues[sessionID], inj)
	return nil
}

// Drain returns and clears sessionID's pending injections, called by the Orchestrator
// at each of its checkpoints.
func (m *InjectionManager) Drain(sessionID string) []Injection {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.queues[sessionID]
	delete(m.queues, sessionID)
	return pending
}
