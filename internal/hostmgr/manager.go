package hostmgr

import (
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/shadow/shadow-sub001/log"
)

// Manager owns a set of simulated hosts and runs each one's loop on a
// goroutine drawn from a bounded pool, so a panic inside one host's task
// doesn't take down the others.
type Manager struct {
	lb   LoadBalance
	pool *ants.Pool
}

// NewManager constructs a manager using the named load-balance strategy,
// with up to maxGoroutines concurrently-running host loops (0 means no
// limit).
func NewManager(balance string, maxGoroutines int) (*Manager, error) {
	builder := GetBalanceBuilder(balance)
	if builder == nil {
		return nil, fmt.Errorf("hostmgr: loadbalance %q is not registered", balance)
	}
	pool, err := ants.NewPool(maxGoroutines, ants.WithPanicHandler(func(v any) {
		log.Errorf("hostmgr: recovered panic in host loop: %v", v)
	}))
	if err != nil {
		return nil, errors.Wrap(err, "hostmgr: create pool")
	}
	return &Manager{lb: builder(), pool: pool}, nil
}

// AddHost creates and registers a new host, starting its loop on the pool.
func (m *Manager) AddHost(name string, epoch time.Time) (*Host, error) {
	h := NewHost(name, epoch)
	m.lb.Register(h)
	if err := m.pool.Submit(h.Run); err != nil {
		return nil, errors.Wrapf(err, "hostmgr: submit host %q", name)
	}
	return h, nil
}

// Pick selects one registered host via the configured load-balance
// strategy, e.g. to place a newly-spawned managed process.
func (m *Manager) Pick() *Host {
	return m.lb.Pick()
}

// NumHosts returns the number of registered hosts.
func (m *Manager) NumHosts() int {
	return m.lb.Len()
}

// Close stops every registered host's loop and releases the pool.
func (m *Manager) Close() error {
	m.lb.Iterate(func(_ int, h *Host) bool {
		h.Stop()
		return true
	})
	m.pool.Release()
	return nil
}
