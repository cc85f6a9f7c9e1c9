// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNow(t *testing.T) {
	c := Fake(epoch)
	if !c.Now().Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", c.Now(), epoch)
	}
	c.Advance(90 * time.Second)
	if want := epoch.Add(90 * time.Second); !c.Now().Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", c.Now(), want)
	}
	if got := Since(c, epoch); got != 90*time.Second {
		t.Errorf("Since = %v, want 90s", got)
	}
	c.Set(epoch)
	if !c.Now().Equal(epoch) {
		t.Errorf("Now() after Set = %v, want %v", c.Now(), epoch)
	}
}

func TestFakeAdvanceNegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Advance with a negative duration did not panic")
		}
	}()
	Fake(epoch).Advance(-time.Second)
}

func TestFakeConcurrentAdvance(t *testing.T) {
	c := Fake(epoch)
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Advance(time.Millisecond)
				_ = c.Now()
			}
		}()
	}
	wg.Wait()
	if want := epoch.Add(time.Second); !c.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestRealClockMoves(t *testing.T) {
	c := Real()
	first := c.Now()
	if Since(c, first) < 0 {
		t.Error("real clock went backwards")
	}
}
