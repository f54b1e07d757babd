package handshake

import (
	"sort"
	"sync"
	"time"
)

// manualClock runs callbacks synchronously from Advance
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	nextID int
	timers map[int]*manualTimer
}

type manualTimer struct {
	at    time.Duration
	every time.Duration
	f     func()
}

func newManualClock() *manualClock {
	return &manualClock{timers: make(map[int]*manualTimer)}
}

func (c *manualClock) schedule(d, every time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	t := &manualTimer{at: c.now + d, every: every, f: f}
	c.timers[id] = t
	return stopFunc(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.timers, id)
	})
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Stopper {
	return c.schedule(d, 0, f)
}

func (c *manualClock) Every(d time.Duration, f func()) Stopper {
	return c.schedule(d, d, f)
}

// Pending returns the number of scheduled callbacks
func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves time forward by d, firing due callbacks in time order
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var (
			due   *manualTimer
			dueID int
		)
		ids := make([]int, 0, len(c.timers))
		for id := range c.timers {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			t := c.timers[id]
			if t.at <= target && (due == nil || t.at < due.at) {
				due, dueID = t, id
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = due.at
		if due.every > 0 {
			due.at += due.every
		} else {
			delete(c.timers, dueID)
		}
		f := due.f
		c.mu.Unlock()

		f()
	}
}
