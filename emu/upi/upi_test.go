package upi

import (
	"sync"
	"testing"
)

func TestSendNeverBlocksUnderConcurrentLoad(t *testing.T) {
	c := NewComplex()
	c.Register(1)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if !c.Send(1, Signal{From: 2, Kind: Normal, Data: uint32(i)}) {
				t.Errorf("Send to a registered processor should succeed")
			}
		}(i)
	}
	wg.Wait()

	got := c.Drain(1)
	if len(got) != 100 {
		t.Errorf("drained %d signals, want 100", len(got))
	}
}

func TestSendToUnregisteredProcessorFails(t *testing.T) {
	c := NewComplex()
	if c.Send(99, Signal{}) {
		t.Errorf("Send to an unregistered processor should report failure")
	}
}

func TestDrainIsEmptyAfterFirstDrain(t *testing.T) {
	c := NewComplex()
	c.Register(1)
	c.Send(1, Signal{Kind: Initial})

	first := c.Drain(1)
	if len(first) != 1 {
		t.Fatalf("expected one signal, got %d", len(first))
	}
	second := c.Drain(1)
	if len(second) != 0 {
		t.Errorf("expected an empty drain after the first, got %d", len(second))
	}
}

func TestDrainPreservesArrivalOrder(t *testing.T) {
	c := NewComplex()
	c.Register(1)
	for i := 0; i < 5; i++ {
		c.Send(1, Signal{Data: uint32(i)})
	}
	got := c.Drain(1)
	for i, s := range got {
		if s.Data != uint32(i) {
			t.Errorf("signal %d has Data=%d, want %d", i, s.Data, i)
		}
	}
}
