// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Errorf("Now: got %v, want %v", c.Now(), epoch)
	}
	c.Advance(3 * time.Second)
	if want := epoch.Add(3 * time.Second); !c.Now().Equal(want) {
		t.Errorf("Now after Advance: got %v, want %v", c.Now(), want)
	}
}

func TestFakeClockAfterFuncFiresOnAdvance(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	fired := 0
	c.AfterFunc(5*time.Second, func() { fired++ })

	c.Advance(4 * time.Second)
	if fired != 0 {
		t.Fatalf("fired before deadline: %d", fired)
	}
	c.Advance(time.Second)
	if fired != 1 {
		t.Fatalf("fired at deadline: got %d, want 1", fired)
	}
	c.Advance(time.Hour)
	if fired != 1 {
		t.Errorf("one-shot fired again: got %d, want 1", fired)
	}
}

func TestFakeClockAfterFuncZeroDurationRunsImmediately(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(0, func() { fired = true })
	if !fired {
		t.Error("zero-duration AfterFunc did not run synchronously")
	}
	if timer.Stop() {
		t.Error("Stop on already-run timer: got true, want false")
	}
}

func TestFakeClockStopPreventsFiring(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Error("first Stop: got false, want true")
	}
	if timer.Stop() {
		t.Error("second Stop: got true, want false")
	}
	c.Advance(time.Minute)
	if fired {
		t.Error("stopped timer fired")
	}
	if c.PendingCount() != 0 {
		t.Errorf("PendingCount: got %d, want 0", c.PendingCount())
	}
}

func TestFakeClockFiresInDeadlineOrder(t *testing.T) {
	t.Parallel()
	c := Fake(epoch)
	var order []int
	c.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	c.AfterFunc(1*time.Second, func() { order = append(order, 1) })
	c.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	c.Advance(10 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order: got %v, want [1 2 3]", order)
	}
}

func TestClockImplementations(t *testing.T) {
	t.Parallel()
	var _ Clock = Fake(epoch)
	var _ Clock = Real()
}
