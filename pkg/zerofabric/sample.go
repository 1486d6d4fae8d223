package zerofabric

import "sync/atomic"

// Slot is the loaned, not-yet-sent write handle a Publisher hands
// back from Loan (§3 "PayloadSlot", "loaned" state). It is move-only:
// a Slot must be passed to Publisher.Send or Publisher.Discard
// exactly once.
type Slot struct {
	index   uint32
	pool    *slotPool
	used    atomic.Bool
}

// Bytes returns the writable payload region of the slot (the bytes
// after the in-band Header).
func (s *Slot) Bytes() []byte {
	return s.pool.bytes(s.index)[HeaderSize:]
}

// Sample is the transient borrow a Subscriber.Receive hands back
// (§3 "Sample", §4.11). It owns the right to read the payload slot
// and the obligation to return its index via the connection's
// reclamation queue exactly once, on Release.
type Sample struct {
	index    uint32
	pool     *slotPool
	conn     *connection
	sub      *Subscriber
	header   Header
	released atomic.Bool
}

// Header returns the transport header of the received message.
func (s *Sample) Header() Header { return s.header }

// Payload returns the zero-copy, read-only view of the received
// payload. The returned slice aliases the publisher's shared-memory
// pool directly; it must not be read after Release.
func (s *Sample) Payload() []byte {
	return s.pool.bytes(s.index)[HeaderSize:]
}

// Release returns the slot's index to the owning Connection's
// reclamation queue. It is safe to call multiple times; only the
// first call has an effect, satisfying "exactly once" (§4.11).
func (s *Sample) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}
	if s.sub != nil {
		s.sub.releaseSample()
	}
	_, _, err := s.conn.reclamation.push(s.index)
	if err != nil {
		// Sizing invariants (§4.9) mean this should not happen; if it
		// does, the index is dropped and a warning logged. The dropped
		// slot is not returned to the publisher's pool.
		log.WithField("connection", s.conn.name).Warn("reclamation queue full, dropping sample index")
		return nil
	}
	return nil
}
