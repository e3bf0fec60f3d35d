// Package store provides an in-memory credit.TxStore for tests/dev.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/credit-engine/credit"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.Mutex
	credits map[credit.CreditID]credit.StoreCredit
	events  map[credit.CreditID][]credit.Event
	types   map[credit.TypeID]credit.CreditType
}

func NewMemory() *Memory {
	return &Memory{
		credits: make(map[credit.CreditID]credit.StoreCredit),
		events:  make(map[credit.CreditID][]credit.Event),
		types:   make(map[credit.TypeID]credit.CreditType),
	}
}

// SeedCreditType registers a credit type. Test/dev helper; production
// stores load types from configuration at startup.
func (m *Memory) SeedCreditType(ct credit.CreditType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.types[ct.ID] = ct
}

// =============================================================================
// WITHTX - Snapshot-based atomicity
// =============================================================================

// WithTx holds the store lock for the duration of fn, serializing all
// operations, and restores a pre-transaction snapshot if fn fails.
// That gives the same no-partial-writes guarantee as a database
// rollback.
func (m *Memory) WithTx(_ context.Context, fn func(credit.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapCredits := make(map[credit.CreditID]credit.StoreCredit, len(m.credits))
	for k, v := range m.credits {
		snapCredits[k] = v
	}
	snapEvents := make(map[credit.CreditID][]credit.Event, len(m.events))
	for k, v := range m.events {
		snapEvents[k] = append([]credit.Event(nil), v...)
	}

	if err := fn(&memTx{m}); err != nil {
		m.credits = snapCredits
		m.events = snapEvents
		return err
	}
	return nil
}

// memTx is the view handed to WithTx callbacks; it skips locking since
// the transaction already holds the store lock.
type memTx struct{ m *Memory }

func (t *memTx) CreateCredit(ctx context.Context, sc credit.StoreCredit) error {
	return t.m.createCreditLocked(sc)
}
func (t *memTx) GetCredit(ctx context.Context, id credit.CreditID) (*credit.StoreCredit, error) {
	return t.m.getCreditLocked(id)
}
func (t *memTx) UpdateCredit(ctx context.Context, sc credit.StoreCredit) error {
	return t.m.updateCreditLocked(sc)
}
func (t *memTx) CreditsByUser(ctx context.Context, userID credit.UserID) ([]credit.StoreCredit, error) {
	return t.m.creditsByUserLocked(userID)
}
func (t *memTx) AppendEvent(ctx context.Context, ev credit.Event) error {
	return t.m.appendEventLocked(ev)
}
func (t *memTx) FindEvent(ctx context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) (*credit.Event, error) {
	return t.m.findEventLocked(id, action, code)
}
func (t *memTx) EventsByCode(ctx context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) ([]credit.Event, error) {
	return t.m.eventsByCodeLocked(id, action, code)
}
func (t *memTx) Events(ctx context.Context, id credit.CreditID) ([]credit.Event, error) {
	return t.m.eventsLocked(id)
}
func (t *memTx) GetCreditType(ctx context.Context, id credit.TypeID) (*credit.CreditType, error) {
	return t.m.getCreditTypeLocked(id)
}
func (t *memTx) FindCreditTypeByName(ctx context.Context, name string) (*credit.CreditType, error) {
	return t.m.findCreditTypeByNameLocked(name)
}

// =============================================================================
// STORE INTERFACE (locking wrappers)
// =============================================================================

func (m *Memory) CreateCredit(_ context.Context, sc credit.StoreCredit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCreditLocked(sc)
}

func (m *Memory) GetCredit(_ context.Context, id credit.CreditID) (*credit.StoreCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCreditLocked(id)
}

func (m *Memory) UpdateCredit(_ context.Context, sc credit.StoreCredit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateCreditLocked(sc)
}

func (m *Memory) CreditsByUser(_ context.Context, userID credit.UserID) ([]credit.StoreCredit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creditsByUserLocked(userID)
}

func (m *Memory) AppendEvent(_ context.Context, ev credit.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEventLocked(ev)
}

func (m *Memory) FindEvent(_ context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) (*credit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findEventLocked(id, action, code)
}

func (m *Memory) EventsByCode(_ context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) ([]credit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsByCodeLocked(id, action, code)
}

func (m *Memory) Events(_ context.Context, id credit.CreditID) ([]credit.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eventsLocked(id)
}

func (m *Memory) GetCreditType(_ context.Context, id credit.TypeID) (*credit.CreditType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCreditTypeLocked(id)
}

func (m *Memory) FindCreditTypeByName(_ context.Context, name string) (*credit.CreditType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findCreditTypeByNameLocked(name)
}

// =============================================================================
// LOCKED IMPLEMENTATIONS
// =============================================================================

func (m *Memory) createCreditLocked(sc credit.StoreCredit) error {
	m.credits[sc.ID] = sc
	return nil
}

func (m *Memory) getCreditLocked(id credit.CreditID) (*credit.StoreCredit, error) {
	sc, ok := m.credits[id]
	if !ok || sc.Deleted() {
		return nil, credit.ErrCreditNotFound
	}
	cp := sc
	return &cp, nil
}

func (m *Memory) updateCreditLocked(sc credit.StoreCredit) error {
	if _, ok := m.credits[sc.ID]; !ok {
		return credit.ErrCreditNotFound
	}
	m.credits[sc.ID] = sc
	return nil
}

func (m *Memory) creditsByUserLocked(userID credit.UserID) ([]credit.StoreCredit, error) {
	var out []credit.StoreCredit
	for _, sc := range m.credits {
		if sc.UserID == userID && !sc.Deleted() {
			out = append(out, sc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := m.typePriority(out[i].TypeID), m.typePriority(out[j].TypeID)
		if pi != pj {
			return pi < pj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) typePriority(id credit.TypeID) int {
	if ct, ok := m.types[id]; ok {
		return ct.Priority
	}
	return int(^uint(0) >> 1) // unknown types sort last
}

func (m *Memory) appendEventLocked(ev credit.Event) error {
	m.events[ev.CreditID] = append(m.events[ev.CreditID], ev)
	return nil
}

func (m *Memory) findEventLocked(id credit.CreditID, action credit.Action, code credit.AuthorizationCode) (*credit.Event, error) {
	for _, ev := range m.events[id] {
		if ev.Action == action && ev.AuthorizationCode == code {
			cp := ev
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Memory) eventsByCodeLocked(id credit.CreditID, action credit.Action, code credit.AuthorizationCode) ([]credit.Event, error) {
	var out []credit.Event
	for _, ev := range m.events[id] {
		if ev.Action == action && ev.AuthorizationCode == code {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *Memory) eventsLocked(id credit.CreditID) ([]credit.Event, error) {
	return append([]credit.Event(nil), m.events[id]...), nil
}

func (m *Memory) getCreditTypeLocked(id credit.TypeID) (*credit.CreditType, error) {
	ct, ok := m.types[id]
	if !ok {
		return nil, nil
	}
	cp := ct
	return &cp, nil
}

func (m *Memory) findCreditTypeByNameLocked(name string) (*credit.CreditType, error) {
	for _, ct := range m.types {
		if ct.Name == name {
			cp := ct
			return &cp, nil
		}
	}
	return nil, nil
}
