package main

import (
	"testing"
	"time"
)

func TestBuzzerGrantsFirstPress(t *testing.T) {
	b := newBuzzer(time.Minute, nil)

	if !b.Press("alice") {
		t.Fatal("first press not granted")
	}
	if b.Press("bob") {
		t.Error("second press granted while locked")
	}
	if got := b.Holder(); got != "alice" {
		t.Errorf("holder = %q, want alice", got)
	}
}

func TestBuzzerRelease(t *testing.T) {
	b := newBuzzer(time.Minute, nil)
	b.Press("alice")

	if b.Release("bob") {
		t.Error("release by non-holder succeeded")
	}
	if !b.Release("alice") {
		t.Fatal("release by holder failed")
	}
	if got := b.Holder(); got != "" {
		t.Errorf("holder after release = %q", got)
	}

	// Lock is free again.
	if !b.Press("bob") {
		t.Error("press after release not granted")
	}
}

func TestBuzzerReleaseWhenIdle(t *testing.T) {
	b := newBuzzer(time.Minute, nil)

	if b.Release("") {
		t.Error("release of idle buzzer succeeded")
	}
}

func TestBuzzerTimeout(t *testing.T) {
	expired := make(chan string, 1)
	b := newBuzzer(10*time.Millisecond, func(holder string) {
		expired <- holder
	})

	b.Press("alice")

	select {
	case holder := <-expired:
		if holder != "alice" {
			t.Errorf("expired holder = %q, want alice", holder)
		}
	case <-time.After(time.Second):
		t.Fatal("buzz lock never expired")
	}

	if got := b.Holder(); got != "" {
		t.Errorf("holder after expiry = %q", got)
	}
	if !b.Press("bob") {
		t.Error("press after expiry not granted")
	}
}

func TestBuzzerReleaseCancelsTimeout(t *testing.T) {
	expired := make(chan string, 1)
	b := newBuzzer(20*time.Millisecond, func(holder string) {
		expired <- holder
	})

	b.Press("alice")
	b.Release("alice")

	// A new lock taken before the old timer would have fired must survive
	// it: the only expiry seen is bob's own.
	b.Press("bob")

	select {
	case holder := <-expired:
		if holder != "bob" {
			t.Fatalf("expired holder = %q, want bob", holder)
		}
	case <-time.After(time.Second):
		t.Fatal("replacement lock never expired")
	}

	select {
	case holder := <-expired:
		t.Errorf("extra expiry fired for %q", holder)
	case <-time.After(40 * time.Millisecond):
	}
}

func TestBuzzerStop(t *testing.T) {
	expired := make(chan string, 1)
	b := newBuzzer(10*time.Millisecond, func(holder string) {
		expired <- holder
	})

	b.Press("alice")
	b.Stop()

	if got := b.Holder(); got != "" {
		t.Errorf("holder after stop = %q", got)
	}

	select {
	case holder := <-expired:
		t.Errorf("timer fired after stop for %q", holder)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestBuzzerZeroTimeoutNeverExpires(t *testing.T) {
	b := newBuzzer(0, func(string) {
		t.Error("expiry callback fired with zero timeout")
	})

	b.Press("alice")
	time.Sleep(20 * time.Millisecond)

	if got := b.Holder(); got != "alice" {
		t.Errorf("holder = %q, want alice", got)
	}
}
