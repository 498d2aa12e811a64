package orders

import "sync"

// orderLocks serializes transitions per order ref: at most one in-flight
// transition per order within this process. Commits are additionally
// status-guarded (see Database.CommitTransition) so the guarantee holds
// across processes.
type orderLocks struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[string]*refLock)}
}

// acquire blocks until the order's lock is held and returns the release
// function. Lock entries are dropped once unused to keep the map bounded.
func (l *orderLocks) acquire(orderRef string) func() {
	l.mu.Lock()
	entry, ok := l.locks[orderRef]
	if !ok {
		entry = &refLock{}
		l.locks[orderRef] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()

	return func() {
		entry.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, orderRef)
		}
		l.mu.Unlock()
	}
}
