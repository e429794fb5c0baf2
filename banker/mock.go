package banker

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// reservation is one outstanding Authorize call awaiting Commit or Rollback.
type reservation struct {
	account string
	micros  int64
}

// Mock is an in-memory Client backed by per-account balances, for tests and
// for standalone operation without a real banker service.
type Mock struct {
	mu        sync.Mutex
	balances  map[string]int64 // account -> available micros
	reserved  map[Handle]reservation
	nextID    uint64
	committed int64 // sum of all Commit amounts, for conservation checks
	rolled    int64 // sum of all Rollback-released amounts
}

func NewMock(initialBalances map[string]int64) *Mock {
	balances := make(map[string]int64, len(initialBalances))
	for k, v := range initialBalances {
		balances[k] = v
	}
	return &Mock{balances: balances, reserved: make(map[Handle]reservation)}
}

func (m *Mock) Authorize(account string, amountMicros int64, currency string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.balances[account] < amountMicros {
		return "", InsufficientError(account)
	}
	m.balances[account] -= amountMicros
	id := atomic.AddUint64(&m.nextID, 1)
	h := Handle(fmt.Sprintf("rsv-%d", id))
	m.reserved[h] = reservation{account: account, micros: amountMicros}
	return h, nil
}

func (m *Mock) Commit(handle Handle, actualMicros int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rsv, ok := m.reserved[handle]
	if !ok {
		return fmt.Errorf("banker mock: unknown reservation %s", handle)
	}
	delete(m.reserved, handle)
	if actualMicros < rsv.micros {
		m.balances[rsv.account] += rsv.micros - actualMicros
	}
	m.committed += actualMicros
	return nil
}

func (m *Mock) Rollback(handle Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rsv, ok := m.reserved[handle]
	if !ok {
		return fmt.Errorf("banker mock: unknown reservation %s", handle)
	}
	delete(m.reserved, handle)
	m.balances[rsv.account] += rsv.micros
	m.rolled += rsv.micros
	return nil
}

// Balance returns account's current available balance. Test helper.
func (m *Mock) Balance(account string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[account]
}

// Committed returns the running sum of every Commit call's actualMicros,
// for exercising the banker-conservation property.
func (m *Mock) Committed() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// Rolled returns the running sum of every Rollback's released amount.
func (m *Mock) Rolled() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rolled
}
