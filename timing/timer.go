// Package timing provides the per-core downcount timer and the guest
// instruction-cache model used by the dispatch loop.
package timing

// maxSliceLength bounds how many ticks a core may run before the timer is
// consulted again.
const maxSliceLength = 20000

// EventCallback runs when a scheduled event comes due. late is how many
// ticks past its target time the event fired.
type EventCallback func(late int64)

type event struct {
	time int64
	name string
	cb   EventCallback
}

// Timer is the per-core downcount timer. The emulation thread decrements
// the downcount through AddTicks as guest instructions retire; when it goes
// negative AddTicks calls Advance, which fires due events and opens the next
// slice.
//
// A Timer is shared by reference with the scheduler that owns the core; it
// is only ever advanced from the emulation thread.
type Timer struct {
	ticks     int64 // total ticks advanced so far
	sliceLen  int64
	downCount int64

	events []event // sorted by due time
}

// NewTimer creates a timer with a full initial slice.
func NewTimer() *Timer {
	return &Timer{sliceLen: maxSliceLength, downCount: maxSliceLength}
}

// Downcount returns the ticks remaining in the current slice.
func (t *Timer) Downcount() int64 { return t.downCount }

// Ticks returns the total ticks advanced.
func (t *Timer) Ticks() int64 { return t.ticks + (t.sliceLen - t.downCount) }

// AddTicks retires n ticks. When the slice is exhausted the timer
// advances, firing any due events.
func (t *Timer) AddTicks(n int64) {
	t.downCount -= n
	if t.downCount < 0 {
		t.Advance()
	}
}

// ScheduleEvent registers cb to fire ticksIntoFuture ticks from now.
func (t *Timer) ScheduleEvent(ticksIntoFuture int64, name string, cb EventCallback) {
	due := t.Ticks() + ticksIntoFuture
	i := 0
	for i < len(t.events) && t.events[i].time <= due {
		i++
	}
	t.events = append(t.events, event{})
	copy(t.events[i+1:], t.events[i:])
	t.events[i] = event{time: due, name: name, cb: cb}

	// Shrink the current slice if the new event lands inside it.
	if remaining := due - t.Ticks(); remaining < t.downCount {
		t.sliceLen -= t.downCount - remaining
		t.downCount = remaining
	}
}

// Advance closes the current slice, fires every due event, and opens the
// next slice up to the nearest pending event.
func (t *Timer) Advance() {
	t.ticks += t.sliceLen - t.downCount

	for len(t.events) > 0 && t.events[0].time <= t.ticks {
		ev := t.events[0]
		t.events = t.events[1:]
		ev.cb(t.ticks - ev.time)
	}

	next := int64(maxSliceLength)
	if len(t.events) > 0 {
		if until := t.events[0].time - t.ticks; until < next {
			next = until
		}
	}
	t.sliceLen = next
	t.downCount = next
}
