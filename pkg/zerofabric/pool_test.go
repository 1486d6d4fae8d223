package zerofabric

import "testing"

func newTestPool(t *testing.T, capacity, slotSize int) *slotPool {
	t.Helper()
	buf := make([]byte, poolSize(capacity, slotSize))
	return newSlotPool(buf, capacity, slotSize, true)
}

func TestSlotPoolAllocateDeallocateWorks(t *testing.T) {
	p := newTestPool(t, 4, 16)

	indices := make([]uint32, 0, 4)
	for i := 0; i < 4; i++ {
		idx, err := p.allocate()
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		indices = append(indices, idx)
	}

	if _, err := p.allocate(); err != errPoolExhausted {
		t.Fatalf("expected errPoolExhausted, got %v", err)
	}

	p.deallocate(indices[2])
	idx, err := p.allocate()
	if err != nil {
		t.Fatalf("allocate after deallocate: %v", err)
	}
	if idx != indices[2] {
		t.Errorf("expected reused slot %d, got %d", indices[2], idx)
	}
}

func TestSlotPoolBytesAreIsolatedPerSlotWorks(t *testing.T) {
	p := newTestPool(t, 2, 8)
	a, err := p.allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	b, err := p.allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	copy(p.bytes(a), []byte("aaaaaaaa"))
	copy(p.bytes(b), []byte("bbbbbbbb"))

	if string(p.bytes(a)) == string(p.bytes(b)) {
		t.Fatalf("expected distinct slot contents")
	}
}

func TestSlotPoolSharesStateAcrossHandlesWorks(t *testing.T) {
	buf := make([]byte, poolSize(2, 8))
	owner := newSlotPool(buf, 2, 8, true)
	peer := newSlotPool(buf, 2, 8, false)

	idx, err := owner.allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	copy(owner.bytes(idx), []byte("hi there"))

	if got := string(peer.bytes(idx)); got != "hi there" {
		t.Errorf("expected peer to see owner's write, got %q", got)
	}
}
