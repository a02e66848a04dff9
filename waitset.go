package cosched

import (
	"slices"

	"github.com/gammazero/deque"
)

// waitEntry holds the tasks blocked on one socket, in registration
// order. The socket is not owned by the entry.
type waitEntry struct {
	sock  Socket
	tasks deque.Deque[*Task]
}

// waitSet maps socket identity to the tasks waiting for one readiness
// condition on it. Keys are kept in first-registration order so the
// poll set and the wake order are reproducible.
type waitSet struct {
	entries map[uintptr]*waitEntry
	order   []uintptr
}

func (w *waitSet) add(s Socket, t *Task) {
	if w.entries == nil {
		w.entries = make(map[uintptr]*waitEntry)
	}

	key := s.Fd()
	e, ok := w.entries[key]
	if !ok {
		e = &waitEntry{sock: s}
		w.entries[key] = e
		w.order = append(w.order, key)
	}

	e.tasks.PushBack(t)
	t.wait = w
	t.waitKey = key
}

// sockets returns the registered sockets in registration order.
func (w *waitSet) sockets() []Socket {
	socks := make([]Socket, 0, len(w.order))
	for _, key := range w.order {
		socks = append(socks, w.entries[key].sock)
	}
	return socks
}

// take removes the entry for key and returns its waiters.
func (w *waitSet) take(key uintptr) []*Task {
	e, ok := w.entries[key]
	if !ok {
		return nil
	}
	w.drop(key)

	tasks := make([]*Task, 0, e.tasks.Len())
	for e.tasks.Len() > 0 {
		t := e.tasks.PopFront()
		t.wait = nil
		tasks = append(tasks, t)
	}
	return tasks
}

// remove unregisters t from the entry for key.
func (w *waitSet) remove(key uintptr, t *Task) bool {
	e, ok := w.entries[key]
	if !ok {
		return false
	}

	i := e.tasks.Index(func(x *Task) bool { return x == t })
	if i < 0 {
		return false
	}
	e.tasks.Remove(i)
	t.wait = nil

	if e.tasks.Len() == 0 {
		w.drop(key)
	}
	return true
}

func (w *waitSet) drop(key uintptr) {
	delete(w.entries, key)
	if i := slices.Index(w.order, key); i >= 0 {
		w.order = slices.Delete(w.order, i, i+1)
	}
}

// len returns the number of sockets with waiters.
func (w *waitSet) len() int {
	return len(w.entries)
}

// waiting returns the number of tasks blocked on key.
func (w *waitSet) waiting(key uintptr) int {
	if e, ok := w.entries[key]; ok {
		return e.tasks.Len()
	}
	return 0
}
