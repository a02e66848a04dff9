package cosched

import "fortio.org/safecast"

// WaitGroup is used to wait for a collection of tasks to finish.
// Tasks call Add(1) when they start and Done() when they finish.
// Other tasks can call Wait() to park until all tasks have finished.
type WaitGroup struct {
	noCopy noCopy
	v      int32 // Counter for the number of tasks
	sema   sema  // Tasks parked in Wait
}

// Add adds delta to the WaitGroup counter. If the counter becomes
// zero, every parked waiter is re-queued. If the counter goes
// negative or overflows, Add panics.
func (wg *WaitGroup) Add(delta int) {
	d, err := safecast.Conv[int32](delta)
	if err != nil {
		panic("cosched: WaitGroup delta out of range")
	}
	v, err := safecast.Conv[int32](int64(wg.v) + int64(d))
	if err != nil {
		panic("cosched: WaitGroup counter overflow")
	}
	wg.v = v

	if wg.v < 0 {
		panic("cosched: negative WaitGroup counter")
	}

	if wg.v > 0 {
		return
	}

	for wg.sema.wake() {
	}
}

// Done decrements the WaitGroup counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Wait parks the task running co until the counter is zero. If the
// counter is already zero, it returns immediately.
func (wg *WaitGroup) Wait(co *Co) {
	if wg.v == 0 {
		return
	}

	wg.sema.acquire(co)
}
