package zerofabric

import (
	"encoding/binary"
	"errors"
	"sync/atomic"
	"unsafe"
)

// errQueueFull / errQueueEmpty are queue-local; callers translate
// them into the public semantics described in §4.1 ("full/empty are
// not errors, they are results").
var (
	errQueueFull  = errors.New("zerofabric: index queue full")
	errQueueEmpty = errors.New("zerofabric: index queue empty")
)

const indexQueueHeaderSize = 24 // capacity, head, tail - 3 x uint64

// indexQueueSize returns the number of bytes a queue needs for the
// given (power-of-two-rounded) capacity, header included.
func indexQueueSize(capacity int) int {
	return indexQueueHeaderSize + roundUpPow2(capacity)*4
}

// indexQueue is the fixed-capacity SPSC ring of machine-word (here
// uint32) slot indices from §4.1. It is allocation-free after
// construction and operates directly on a caller-supplied byte
// window, so the same type works whether that window lives in a
// process-local slice or a shared-memory mapping (the spec's
// "backing storage is passed in (relocatable)").
//
// Design is Lamport's ring buffer with a cached peer index, grounded
// on hayabusa-cloud-lfq's SPSC/SPSCIndirect: the producer caches its
// view of head, the consumer caches its view of tail, so the common
// case touches no cross-process cache line beyond the ring slot
// itself.
type indexQueue struct {
	capacity   uint64
	mask       uint64
	head       *atomic.Uint64 // consumer writes, producer reads
	tail       *atomic.Uint64 // producer writes, consumer reads
	ring       []byte         // capacity * 4 bytes, little-endian uint32 per slot
	overflow   bool
	cachedHead uint64 // producer-local
	cachedTail uint64 // consumer-local
}

// newIndexQueue maps an indexQueue onto buf[:indexQueueSize(capacity)].
// init must be true exactly once per artifact lifetime (by whichever
// side creates the backing region); peers that open an existing
// region pass init=false.
func newIndexQueue(buf []byte, capacity int, overflow, init bool) *indexQueue {
	n := uint64(roundUpPow2(capacity))
	q := &indexQueue{
		capacity: n,
		mask:     n - 1,
		head:     (*atomic.Uint64)(unsafe.Pointer(&buf[8])),
		tail:     (*atomic.Uint64)(unsafe.Pointer(&buf[16])),
		ring:     buf[indexQueueHeaderSize : indexQueueHeaderSize+int(n)*4],
		overflow: overflow,
	}
	if init {
		binary.LittleEndian.PutUint64(buf[0:8], n)
		q.head.Store(0)
		q.tail.Store(0)
	}
	return q
}

func (q *indexQueue) slot(i uint64) uint32 {
	return binary.LittleEndian.Uint32(q.ring[(i&q.mask)*4:])
}

func (q *indexQueue) setSlot(i uint64, v uint32) {
	binary.LittleEndian.PutUint32(q.ring[(i&q.mask)*4:], v)
}

// push is producer-only. With overflow disabled it returns
// errQueueFull once the queue is at capacity. With overflow enabled,
// a full queue instead displaces the oldest index (returned as
// (displaced, true, nil)) and the new index is accepted.
func (q *indexQueue) push(v uint32) (displaced uint32, hadDisplaced bool, err error) {
	tail := q.tail.Load()
	if tail-q.cachedHead >= q.capacity {
		q.cachedHead = q.head.Load()
		if tail-q.cachedHead >= q.capacity {
			if !q.overflow {
				return 0, false, errQueueFull
			}
			// Steal the oldest slot: advance head past a consumer
			// that has not yet popped it. CAS guards against a
			// concurrent pop winning the race.
			old := q.cachedHead
			if !q.head.CompareAndSwap(old, old+1) {
				q.cachedHead = q.head.Load()
			} else {
				displaced = q.slot(old)
				hadDisplaced = true
				q.cachedHead = old + 1
			}
		}
	}
	q.setSlot(tail, v)
	q.tail.Store(tail + 1)
	return displaced, hadDisplaced, nil
}

// pop is consumer-only: returns the next index in FIFO order, or
// errQueueEmpty. head is advanced by CAS so that an index the producer
// steals on overflow is never also handed to the consumer.
func (q *indexQueue) pop() (uint32, error) {
	for {
		head := q.head.Load()
		if head >= q.cachedTail {
			q.cachedTail = q.tail.Load()
			if head >= q.cachedTail {
				return 0, errQueueEmpty
			}
		}
		v := q.slot(head)
		if q.head.CompareAndSwap(head, head+1) {
			return v, nil
		}
	}
}

// len reports the queue's current approximate occupancy (consumer or
// producer side; exact only when the peer is quiescent).
func (q *indexQueue) len() uint64 {
	return q.tail.Load() - q.head.Load()
}

func (q *indexQueue) cap() uint64 { return q.capacity }

func roundUpPow2(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
