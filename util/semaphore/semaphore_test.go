package semaphore

import (
	"testing"
	"time"
)

func TestPBlocksUntilV(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.P(1); err != nil {
		t.Fatalf("P: %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		if err := s.P(1); err != nil {
			t.Errorf("second P: %v", err)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("second P acquired before first V")
	case <-time.After(20 * time.Millisecond):
	}

	if err := s.V(1); err != nil {
		t.Fatalf("V: %v", err)
	}

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("second P never acquired after V")
	}
}

func TestCloseUnblocksP(t *testing.T) {
	s := NewSemaphore(0)
	done := make(chan error, 1)
	go func() { done <- s.P(1) }()

	s.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected error after Close")
		}
	case <-time.After(time.Second):
		t.Fatalf("P never returned after Close")
	}
}

func TestVWithoutPPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic releasing an unlocked semaphore")
		}
	}()
	s := NewSemaphore(1)
	_ = s.V(1)
}
