package handshake

import (
	"sync"
	"time"
)

// Stopper cancels a scheduled callback. Stop is idempotent.
type Stopper interface {
	Stop()
}

// Clock schedules the handshake's timers
type Clock interface {
	// AfterFunc runs f once after d
	AfterFunc(d time.Duration, f func()) Stopper
	// Every runs f every d until stopped
	Every(d time.Duration, f func()) Stopper
}

type stopFunc func()

func (f stopFunc) Stop() { f() }

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) AfterFunc(d time.Duration, f func()) Stopper {
	t := time.AfterFunc(d, f)
	return stopFunc(func() { t.Stop() })
}

func (SystemClock) Every(d time.Duration, f func()) Stopper {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				f()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return stopFunc(func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	})
}
