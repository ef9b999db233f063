package channel

import (
	"testing"
)

func TestPublishAndReadRange(t *testing.T) {
	topic := NewTopic[int](1)
	topic.PublishN(4, func(set func(i int, v int)) {
		for i, v := range []int{1, 2, 3, 4} {
			set(i, v)
		}
	})
	topic.ProducerDone()

	v, ok := topic.Read(0)
	if !ok || v != 1 {
		t.Fatalf("Read(0) = %v, %v", v, ok)
	}

	rng, ok := topic.ReadRange(1, 2)
	if !ok || len(rng) != 2 || rng[0] != 2 || rng[1] != 3 {
		t.Fatalf("ReadRange(1,2) = %v, %v", rng, ok)
	}

	rng, ok = topic.ReadRange(3, 2)
	if !ok || len(rng) != 1 || rng[0] != 4 {
		t.Fatalf("ReadRange(3,2) = %v, %v", rng, ok)
	}

	if _, ok := topic.ReadRange(4, 1); ok {
		t.Errorf("expected close to be observed once exhausted")
	}
}

func TestBlockedReadWakesOnPublish(t *testing.T) {
	topic := NewTopic[string](1)
	done := make(chan struct{})
	go func() {
		v, ok := topic.Read(0)
		if !ok || v != "hello" {
			t.Errorf("Read(0) = %v, %v", v, ok)
		}
		close(done)
	}()

	topic.PublishN(1, func(set func(i int, v string)) { set(0, "hello") })
	topic.ProducerDone()
	<-done
}

func TestClosesAfterAllProducersDone(t *testing.T) {
	topic := NewTopic[int](2)
	topic.ProducerDone()
	if topic.Closed() {
		t.Fatalf("expected topic open with one producer still pending")
	}
	topic.ProducerDone()
	if !topic.Closed() {
		t.Fatalf("expected topic closed once both producers are done")
	}
}
