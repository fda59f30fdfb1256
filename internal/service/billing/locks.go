package billing

import "sync"

// customerLocks serializes billing transitions per customer. Two concurrent
// evaluations of the same customer must not both meter usage or both issue
// a cycle invoice; different customers proceed in parallel.
type customerLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCustomerLocks() *customerLocks {
	return &customerLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *customerLocks) get(customerID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[customerID] = lock
	}
	return lock
}
