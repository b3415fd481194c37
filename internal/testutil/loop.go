// Package testutil provides deterministic fakes for the bridge ports: a manual
// clock loop and an in-memory websocket transport.
package testutil

import (
	"sort"
	"time"

	"bsrBridge/internal/domain"
)

// FakeLoop implements domain.Loop on a simulated clock. Nothing runs until the
// test calls Flush, Advance or ReleaseWork.
type FakeLoop struct {
	now     time.Duration
	queue   []func()
	timers  []*fakeTimer
	pending []pendingWork
	seq     int

	// HoldWork keeps Go() work pending until ReleaseWork is called.
	HoldWork bool
}

type fakeTimer struct {
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type pendingWork struct {
	work func() error
	done func(error)
}

func NewFakeLoop() *FakeLoop {
	return &FakeLoop{}
}

func (l *FakeLoop) Post(fn func()) {
	l.queue = append(l.queue, fn)
}

func (l *FakeLoop) Go(work func() error, done func(error)) {
	if l.HoldWork {
		l.pending = append(l.pending, pendingWork{work: work, done: done})
		return
	}
	err := work()
	l.Post(func() { done(err) })
}

func (l *FakeLoop) AfterFunc(d time.Duration, fn func()) domain.Timer {
	l.seq++
	t := &fakeTimer{at: l.now + d, seq: l.seq, fn: fn}
	l.timers = append(l.timers, t)
	return t
}

// Now returns the simulated time elapsed since the loop was created.
func (l *FakeLoop) Now() time.Duration {
	return l.now
}

// Flush runs queued tasks until the queue is empty.
func (l *FakeLoop) Flush() {
	for len(l.queue) > 0 {
		fn := l.queue[0]
		l.queue = l.queue[1:]
		fn()
	}
}

// Advance moves the clock forward by d, firing due timers in order.
func (l *FakeLoop) Advance(d time.Duration) {
	target := l.now + d
	l.Flush()
	for {
		next := l.nextTimer(target)
		if next == nil {
			break
		}
		l.now = next.at
		next.fired = true
		next.fn()
		l.Flush()
	}
	l.now = target
}

// PendingTimers counts armed timers that have not fired or been stopped.
func (l *FakeLoop) PendingTimers() int {
	n := 0
	for _, t := range l.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

// PendingWork counts Go() calls held by HoldWork.
func (l *FakeLoop) PendingWork() int {
	return len(l.pending)
}

// ReleaseWork runs every held Go() call and flushes their continuations.
func (l *FakeLoop) ReleaseWork() {
	pending := l.pending
	l.pending = nil
	for _, p := range pending {
		p := p
		err := p.work()
		l.Post(func() { p.done(err) })
	}
	l.Flush()
}

func (l *FakeLoop) nextTimer(limit time.Duration) *fakeTimer {
	due := make([]*fakeTimer, 0, len(l.timers))
	for _, t := range l.timers {
		if !t.fired && !t.stopped && t.at <= limit {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	return due[0]
}
