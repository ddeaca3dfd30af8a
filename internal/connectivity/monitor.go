// Package connectivity tracks whether the remote system is reachable and
// notifies subscribers when reachability changes.
package connectivity

import (
	"context"
	"log"
	"sync"
)

// Monitor holds the current online/offline state.  Transitions fire the
// registered callbacks; setting the same state twice is a no-op.
type Monitor struct {
	mu        sync.Mutex
	online    bool
	nextSubID int
	subs      map[int]func(online bool)
	logger    *log.Logger
}

// NewMonitor returns a monitor that starts online.  Connectivity is assumed
// until a probe reports otherwise.
func NewMonitor(logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		online: true,
		subs:   make(map[int]func(online bool)),
		logger: logger,
	}
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records the state and, on a transition, invokes every registered
// callback with the new value.  Callbacks run synchronously under no lock.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if online {
		m.logger.Println("connectivity restored")
	} else {
		m.logger.Println("connectivity lost")
	}
	for _, fn := range fns {
		fn(online)
	}
}

// OnChange registers fn to run on every transition.  The returned function
// removes the registration.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// NewProbe wraps a reachability check into a job action for the scheduler.
// The check's outcome updates the monitor; the action itself never fails, so
// the probe job keeps running regardless of remote state.
func NewProbe(m *Monitor, check func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		m.SetOnline(check(ctx) == nil)
		return nil
	}
}
