// Copyright 2026 The AgentProof Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeClockAfterFiresOnAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	select {
	case <-channel:
		t.Fatal("After fired before Advance")
	default:
	}

	clock.Advance(3 * time.Second)

	select {
	case <-channel:
	default:
		t.Fatal("After did not fire after Advance")
	}
}

func TestFakeClockAfterZeroDuration(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(0)

	select {
	case <-channel:
	default:
		t.Fatal("After(0) should fire immediately")
	}
}

func TestFakeClockPartialAdvance(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(5 * time.Second)

	clock.Advance(3 * time.Second)
	select {
	case <-channel:
		t.Fatal("After fired before deadline")
	default:
	}

	clock.Advance(2 * time.Second)
	select {
	case <-channel:
	default:
		t.Fatal("After did not fire at exact deadline")
	}
}

func TestFakeClockTickerFiresPerInterval(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Minute)
	defer ticker.Stop()

	clock.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after one interval")
	}

	clock.Advance(time.Minute)
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker did not fire after second interval")
	}
}

func TestFakeClockTickerStop(t *testing.T) {
	clock := Fake(epoch)
	ticker := clock.NewTicker(time.Minute)
	ticker.Stop()

	clock.Advance(5 * time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}

	if got := clock.PendingCount(); got != 0 {
		t.Fatalf("PendingCount after Stop = %d, want 0", got)
	}
}

func TestFakeClockNewTickerPanicsOnNonPositiveInterval(t *testing.T) {
	clock := Fake(epoch)
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) did not panic")
		}
	}()
	clock.NewTicker(0)
}

func TestFakeClockWaitForTimers(t *testing.T) {
	clock := Fake(epoch)

	done := make(chan struct{})
	go func() {
		clock.Sleep(10 * time.Second)
		close(done)
	}()

	clock.WaitForTimers(1)
	clock.Advance(10 * time.Second)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Sleep did not return after Advance")
	}
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	clock := Fake(epoch)
	first := clock.After(1 * time.Second)
	second := clock.After(2 * time.Second)

	clock.Advance(3 * time.Second)

	for name, channel := range map[string]<-chan time.Time{"first": first, "second": second} {
		select {
		case <-channel:
		default:
			t.Fatalf("%s waiter did not fire", name)
		}
	}
}
