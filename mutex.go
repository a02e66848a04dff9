package cosched

// Mutex provides mutual exclusion between tasks. A task that finds it
// locked is parked until the holder unlocks it. Unlock wakes the
// oldest waiter, which takes the lock once it runs; a waiter that is
// killed in between never owns it. The zero value is unlocked.
type Mutex struct {
	noCopy noCopy
	locked bool
	sema   sema
}

// Lock acquires the mutex for the task running co.
func (m *Mutex) Lock(co *Co) {
	for m.locked {
		m.sema.acquire(co)
	}
	m.locked = true
}

// TryLock acquires the mutex if it is free and reports whether it
// did.
func (m *Mutex) TryLock() bool {
	if m.locked {
		return false
	}
	m.locked = true
	return true
}

// Unlock releases the mutex and wakes the oldest waiter, if any.
func (m *Mutex) Unlock() {
	if !m.locked {
		panic("cosched: unlock of unlocked mutex")
	}
	m.locked = false
	m.sema.wake()
}

// WaitCount returns the number of tasks waiting to acquire the mutex.
func (m *Mutex) WaitCount() int {
	return m.sema.len()
}
