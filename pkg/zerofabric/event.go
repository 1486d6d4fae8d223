package zerofabric

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/OneOfOne/xxhash"
	"golang.org/x/sys/unix"
)

// EventId is the small integer identifier a Notifier conveys to a
// Listener (§4.6: "carrying small unsigned integer identifiers (<=
// 64 bits)").
type EventId uint64

// EventChannel is the primitive the event-notification pattern builds
// on (§4.6): a Notifier signals, a Listener waits. Backed by a System
// V semaphore keyed off the artifact's path, the way a Unix daemon
// reaches for sysvipc primitives when it needs cross-process wakeups
// without a shared-memory spin loop, plus a one-word shared-memory
// payload slot carrying the last EventId (§6 "OS semaphore / futex +
// payload word").
type EventChannel interface {
	Notify(id EventId) error
	TryWait() (EventId, bool, error)
	BlockingWait(ctx context.Context) (EventId, error)
	TimedWait(ctx context.Context, timeout time.Duration) (EventId, error)
	Close() error
}

// listenerChannel is the one concrete EventChannel: one System V
// semaphore per Listener, created under the Listener's own artifact
// path so a Notifier can attach to it by recomputing the same key
// (§6 "{listener_pid}_{listener_id}" naming), plus a small mmap'd
// region at that same path holding the most recently notified
// EventId.
//
// The semaphore key is derived from the artifact path via xxhash,
// the same ftok-style approach classic SysV IPC call sites use; like
// ftok, two different paths can in principle hash to the same key.
// That is an accepted simplification here rather than a real
// collision-resistant namespace.
//
// Coalescing is implementation-defined per §4.6: concurrent or
// back-to-back Notify calls before a wait consumes them overwrite the
// payload word, so a waiter observes only the most recent EventId,
// not a queue of every one sent. §4.6 only guarantees that at least
// one wait returns an identifier after each notify that is not
// concurrently being consumed, which this satisfies.
type listenerChannel struct {
	semID        int
	payload      *shmRegion
	eventWord    *atomic.Uint64
	path         string
	ownsArtifact bool
}

func eventChannelPath(cfg *Config, listener UniquePortId) string {
	return filepath.Join(cfg.serviceDir(), listener.String()+cfg.Service.EventSuffix)
}

func eventKey(path string) int32 {
	h := xxhash.Checksum64([]byte(path))
	return int32(h & 0x3fffffff)
}

// createListenerChannel creates the semaphore and payload word for a
// brand-new Listener, initialized to zero pending notifications.
func createListenerChannel(cfg *Config, listener UniquePortId) (*listenerChannel, error) {
	path := eventChannelPath(cfg, listener)
	key := eventKey(path)
	semID, err := unix.Semget(int(key), 1, unix.IPC_CREAT|unix.IPC_EXCL|0o644)
	if err != nil {
		return nil, fmt.Errorf("zerofabric: create event channel: %w", err)
	}
	if _, err := unix.SemctlInt(semID, 0, unix.SETVAL, 0); err != nil {
		unix.Semctl(semID, 0, unix.IPC_RMID, 0)
		return nil, fmt.Errorf("zerofabric: initialize event channel: %w", err)
	}
	payload, err := createShmRegion(path, 8)
	if err != nil {
		unix.Semctl(semID, 0, unix.IPC_RMID, 0)
		return nil, fmt.Errorf("zerofabric: create event channel payload: %w", err)
	}
	return &listenerChannel{
		semID:     semID,
		payload:   payload,
		eventWord: (*atomic.Uint64)(unsafe.Pointer(&payload.data[0])),
		path:      path,
	}, nil
}

// openListenerChannel attaches to an existing Listener's semaphore and
// payload word, as a Notifier does to deliver a wakeup (§4.6, §4.10).
func openListenerChannel(cfg *Config, listener UniquePortId) (*listenerChannel, error) {
	path := eventChannelPath(cfg, listener)
	key := eventKey(path)
	semID, err := unix.Semget(int(key), 1, 0o644)
	if err != nil {
		return nil, fmt.Errorf("zerofabric: open event channel: %w", err)
	}
	payload, err := openShmRegion(path, 8)
	if err != nil {
		return nil, fmt.Errorf("zerofabric: open event channel payload: %w", err)
	}
	return &listenerChannel{
		semID:     semID,
		payload:   payload,
		eventWord: (*atomic.Uint64)(unsafe.Pointer(&payload.data[0])),
		path:      path,
	}, nil
}

// Notify stores id in the payload word, then increments the
// semaphore by one, waking a blocked waiter or leaving a pending
// count for the next wait call (§4.6 "notify").
func (c *listenerChannel) Notify(id EventId) error {
	c.eventWord.Store(uint64(id))
	sops := []unix.Sembuf{{SemNum: 0, SemOp: 1, SemFlg: 0}}
	if err := unix.Semop(c.semID, sops); err != nil {
		return WrapError("Notify", err)
	}
	return nil
}

// TryWait consumes one pending notification without blocking,
// reporting false (not an error) if none was pending (§4.6 "try_wait").
func (c *listenerChannel) TryWait() (EventId, bool, error) {
	sops := []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: unix.IPC_NOWAIT}}
	err := unix.Semop(c.semID, sops)
	if err == nil {
		return EventId(c.eventWord.Load()), true, nil
	}
	if err == unix.EAGAIN {
		return 0, false, nil
	}
	return 0, false, WrapError("TryWait", err)
}

// BlockingWait blocks until a notification is pending, then consumes
// it, or returns early if ctx is canceled (§4.6 "blocking_wait"). The
// semaphore wait itself cannot be interrupted by a context directly,
// so cancellation races a goroutine performing the wait against
// ctx.Done(), matching the cancellable-blocking-call idiom the
// teacher's event.go/pubsub.go use for their own context-aware waits.
// If the channel is torn down while this call is still parked on the
// semaphore, releaseSemaphore's IPC_RMID delivers EIDRM, which is
// reported as ErrListenerClosed rather than left to block forever.
func (c *listenerChannel) BlockingWait(ctx context.Context) (EventId, error) {
	done := make(chan error, 1)
	go func() {
		sops := []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: 0}}
		done <- unix.Semop(c.semID, sops)
	}()
	select {
	case <-ctx.Done():
		return 0, EventWaitErrorInterruptSignal
	case err := <-done:
		if err != nil {
			if err == unix.EINTR {
				return 0, EventWaitErrorInterruptSignal
			}
			if err == unix.EIDRM {
				return 0, ErrListenerClosed
			}
			return 0, WrapError("BlockingWait", err)
		}
		return EventId(c.eventWord.Load()), nil
	}
}

// TimedWait blocks until a notification is pending, timeout elapses,
// or ctx is canceled, returning EventWaitErrorTimedOut in the middle
// case (§4.6 "timed_wait"). See BlockingWait for the EIDRM/teardown
// case.
func (c *listenerChannel) TimedWait(ctx context.Context, timeout time.Duration) (EventId, error) {
	done := make(chan error, 1)
	go func() {
		sops := []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: 0}}
		ts := unix.NsecToTimespec(timeout.Nanoseconds())
		done <- unix.Semtimedop(c.semID, sops, &ts)
	}()
	select {
	case <-ctx.Done():
		return 0, EventWaitErrorInterruptSignal
	case err := <-done:
		if err == nil {
			return EventId(c.eventWord.Load()), nil
		}
		if err == unix.EAGAIN {
			return 0, EventWaitErrorTimedOut
		}
		if err == unix.EINTR {
			return 0, EventWaitErrorInterruptSignal
		}
		if err == unix.EIDRM {
			return 0, ErrListenerClosed
		}
		return 0, WrapError("TimedWait", err)
	}
}

func (c *listenerChannel) AcquireOwnership() { c.ownsArtifact = true }

// releaseSemaphore removes the semaphore if this handle owns the
// artifact. It is idempotent (a second IPC_RMID on an already-removed
// set just errors, which is ignored) and safe to call ahead of Close:
// removing the semaphore first is what delivers EIDRM to any
// BlockingWait/TimedWait call already parked on Semop, so a
// caller can wait for those to drain before unmapping the payload
// region out from under them.
func (c *listenerChannel) releaseSemaphore() {
	if c == nil || !c.ownsArtifact {
		return
	}
	unix.Semctl(c.semID, 0, unix.IPC_RMID, 0)
}

// Close unmaps the payload region and, if this handle owns the
// artifact, removes the semaphore (via releaseSemaphore, safe to call
// again here even if already released) and the backing file (§4.6,
// mirroring DynamicStorage's acquire-ownership-then-remove pattern).
func (c *listenerChannel) Close() error {
	if c == nil {
		return nil
	}
	c.releaseSemaphore()
	if err := c.payload.Close(); err != nil {
		return err
	}
	if !c.ownsArtifact {
		return nil
	}
	return removeIfExists(c.path)
}
