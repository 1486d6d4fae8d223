package zerofabric

import "testing"

func newTestQueue(t *testing.T, capacity int, overflow bool) *indexQueue {
	t.Helper()
	buf := make([]byte, indexQueueSize(capacity))
	return newIndexQueue(buf, capacity, overflow, true)
}

func TestIndexQueuePushPopWorks(t *testing.T) {
	q := newTestQueue(t, 4, false)

	for i := uint32(0); i < 4; i++ {
		if _, _, err := q.push(i); err != nil {
			t.Fatalf("push(%d): %v", i, err)
		}
	}

	for i := uint32(0); i < 4; i++ {
		got, err := q.pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if got != i {
			t.Errorf("pop order: want %d, got %d", i, got)
		}
	}

	if _, err := q.pop(); err != errQueueEmpty {
		t.Errorf("expected errQueueEmpty, got %v", err)
	}
}

func TestIndexQueueFullWithoutOverflowWorks(t *testing.T) {
	q := newTestQueue(t, 2, false)

	if _, _, err := q.push(1); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, _, err := q.push(2); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, _, err := q.push(3); err != errQueueFull {
		t.Errorf("expected errQueueFull, got %v", err)
	}
}

func TestIndexQueueSafeOverflowDisplacesOldestWorks(t *testing.T) {
	q := newTestQueue(t, 2, true)

	if _, _, err := q.push(1); err != nil {
		t.Fatalf("push: %v", err)
	}
	if _, _, err := q.push(2); err != nil {
		t.Fatalf("push: %v", err)
	}

	displaced, had, err := q.push(3)
	if err != nil {
		t.Fatalf("overflow push: %v", err)
	}
	if !had {
		t.Fatalf("expected a displaced index")
	}
	if displaced != 1 {
		t.Errorf("expected oldest index 1 displaced, got %d", displaced)
	}

	got, err := q.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got != 2 {
		t.Errorf("expected remaining index 2, got %d", got)
	}
	got, err = q.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got != 3 {
		t.Errorf("expected newly pushed index 3, got %d", got)
	}
}

func TestIndexQueueRoundsCapacityToPowerOfTwoWorks(t *testing.T) {
	if got := roundUpPow2(5); got != 8 {
		t.Errorf("roundUpPow2(5) = %d, want 8", got)
	}
	if got := roundUpPow2(8); got != 8 {
		t.Errorf("roundUpPow2(8) = %d, want 8", got)
	}
	if got := roundUpPow2(0); got != 1 {
		t.Errorf("roundUpPow2(0) = %d, want 1", got)
	}
}

func TestIndexQueueReopenSharesStateWorks(t *testing.T) {
	buf := make([]byte, indexQueueSize(4))
	producer := newIndexQueue(buf, 4, false, true)
	consumer := newIndexQueue(buf, 4, false, false)

	if _, _, err := producer.push(42); err != nil {
		t.Fatalf("push: %v", err)
	}
	got, err := consumer.pop()
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}
}
