package main

import (
	"sync"
	"time"
)

// Buzzer is the "who gets to answer" lock: Idle, or Locked by one player.
// A lock is released by that player's answer, by their disconnect, or by the
// expiry timer, whichever comes first. The generation counter keeps a timer
// from a previous lock from releasing a newer one.
type Buzzer struct {
	mu      sync.Mutex
	holder  string
	gen     uint64
	timeout time.Duration
	timer   *time.Timer
	expired func(holder string)
}

func newBuzzer(timeout time.Duration, expired func(holder string)) *Buzzer {
	return &Buzzer{
		timeout: timeout,
		expired: expired,
	}
}

// Press attempts to grab the lock for playerID. Reports whether it was
// granted; presses while the lock is held are ignored.
func (b *Buzzer) Press(playerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.holder != "" {
		return false
	}

	b.holder = playerID
	b.gen++
	gen := b.gen

	if b.timeout > 0 {
		b.timer = time.AfterFunc(b.timeout, func() {
			b.expire(gen)
		})
	}

	return true
}

// Holder returns the player currently holding the lock, or "".
func (b *Buzzer) Holder() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.holder
}

// Release frees the lock if playerID holds it. Reports whether it did.
func (b *Buzzer) Release(playerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.holder != playerID || playerID == "" {
		return false
	}

	b.resetLocked()

	return true
}

// Stop cancels any pending expiry and frees the lock. Used when a session
// is discarded.
func (b *Buzzer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resetLocked()
}

func (b *Buzzer) resetLocked() {
	b.holder = ""
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Buzzer) expire(gen uint64) {
	b.mu.Lock()

	if b.gen != gen || b.holder == "" {
		b.mu.Unlock()
		return
	}

	holder := b.holder
	b.resetLocked()
	b.mu.Unlock()

	if b.expired != nil {
		b.expired(holder)
	}
}
