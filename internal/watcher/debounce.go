package watcher

import (
	"container/heap"
	"time"
)

// Debouncer holds one timer per registered key and reports the keys whose
// quiet period has elapsed. Touching a pending key restarts its period, so a
// steady stream of changes postpones the firing until the stream stops.
//
// Debouncer is not safe for concurrent use. The owner polls Expired when
// the earliest deadline (NextDeadline) is reached.
type Debouncer[K comparable] struct {
	delays  map[K]time.Duration
	entries map[K]*deadline[K]
	queue   deadlineQueue[K]
}

// NewDebouncer creates an empty Debouncer.
func NewDebouncer[K comparable]() *Debouncer[K] {
	return &Debouncer[K]{
		delays:  make(map[K]time.Duration),
		entries: make(map[K]*deadline[K]),
	}
}

// Register sets the quiet period for key. Re-registering replaces the delay
// without affecting a pending deadline.
func (d *Debouncer[K]) Register(key K, delay time.Duration) {
	d.delays[key] = delay
}

// Unregister forgets key and cancels its pending deadline.
func (d *Debouncer[K]) Unregister(key K) {
	d.Cancel(key)
	delete(d.delays, key)
}

// Registered reports whether key has a delay.
func (d *Debouncer[K]) Registered(key K) bool {
	_, ok := d.delays[key]
	return ok
}

// Touch records a change for key at now. An idle key becomes pending with
// deadline now+delay; a pending key has its deadline moved to now+delay.
// Unregistered keys are ignored and Touch returns false.
func (d *Debouncer[K]) Touch(key K, now time.Time) bool {
	delay, ok := d.delays[key]
	if !ok {
		return false
	}
	at := now.Add(delay)
	if e, ok := d.entries[key]; ok {
		e.at = at
		heap.Fix(&d.queue, e.index)
		return true
	}
	e := &deadline[K]{key: key, at: at}
	d.entries[key] = e
	heap.Push(&d.queue, e)
	return true
}

// Cancel returns key to idle without firing.
func (d *Debouncer[K]) Cancel(key K) {
	e, ok := d.entries[key]
	if !ok {
		return
	}
	heap.Remove(&d.queue, e.index)
	delete(d.entries, key)
}

// Pending reports whether key has a deadline, and when.
func (d *Debouncer[K]) Pending(key K) (time.Time, bool) {
	e, ok := d.entries[key]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

// Len returns the number of pending keys.
func (d *Debouncer[K]) Len() int {
	return len(d.queue)
}

// NextDeadline returns the earliest pending deadline.
func (d *Debouncer[K]) NextDeadline() (time.Time, bool) {
	if len(d.queue) == 0 {
		return time.Time{}, false
	}
	return d.queue[0].at, true
}

// Expired removes and returns every key whose deadline is at or before now,
// earliest first. Each pending period yields its key exactly once.
func (d *Debouncer[K]) Expired(now time.Time) []K {
	var keys []K
	for len(d.queue) > 0 && !d.queue[0].at.After(now) {
		e := heap.Pop(&d.queue).(*deadline[K])
		delete(d.entries, e.key)
		keys = append(keys, e.key)
	}
	return keys
}

type deadline[K comparable] struct {
	key   K
	at    time.Time
	index int
}

// deadlineQueue is a min-heap ordered by deadline.
type deadlineQueue[K comparable] []*deadline[K]

func (q deadlineQueue[K]) Len() int { return len(q) }

func (q deadlineQueue[K]) Less(i, j int) bool { return q[i].at.Before(q[j].at) }

func (q deadlineQueue[K]) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *deadlineQueue[K]) Push(x any) {
	e := x.(*deadline[K])
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *deadlineQueue[K]) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
