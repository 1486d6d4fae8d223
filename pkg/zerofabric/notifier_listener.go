package zerofabric

import (
	"context"
	"sync"
	"time"
)

// Listener is the wait-side port of an event service (§4.10). It owns
// one EventChannel that every attached Notifier signals.
type Listener struct {
	cfg        *Config
	svc        *Service
	id         UniquePortId
	tableIndex int
	channel    *listenerChannel
	mu         sync.Mutex
	closed     bool
	inflight   sync.WaitGroup
}

// NewListener attaches a new Listener to svc, registering it in
// DynamicConfig and creating its own EventChannel artifact.
func NewListener(svc *Service) (*Listener, error) {
	if svc.static.Pattern != MessagingPatternEvent {
		return nil, ServiceOpenErrorIncompatibleMessagingPattern
	}
	id := NewUniquePortId()
	idx, err := svc.dynamic.tableB.register(id)
	if err != nil {
		return nil, err
	}
	ch, err := createListenerChannel(svc.cfg, id)
	if err != nil {
		svc.dynamic.tableB.deregister(idx)
		return nil, PortCreateErrorUnableToCreateConnection
	}
	return &Listener{cfg: svc.cfg, svc: svc, id: id, tableIndex: idx, channel: ch}, nil
}

// ID returns the listener's UniquePortId.
func (l *Listener) ID() UniquePortId { return l.id }

// TryWait consumes one pending notification without blocking,
// returning its EventId (§4.6 "try_wait() -> Option<EventId>").
func (l *Listener) TryWait() (EventId, bool, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, false, ErrListenerClosed
	}
	l.inflight.Add(1)
	l.mu.Unlock()
	defer l.inflight.Done()
	return l.channel.TryWait()
}

// BlockingWait blocks until a notification is available or ctx is
// canceled, returning the notified EventId. The closed check and the
// inflight bookkeeping below are both taken under l.mu, so a call that
// gets past the check is guaranteed to be accounted for before Close
// can proceed to unmap the channel's payload region.
func (l *Listener) BlockingWait(ctx context.Context) (EventId, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrListenerClosed
	}
	l.inflight.Add(1)
	l.mu.Unlock()
	defer l.inflight.Done()
	return l.channel.BlockingWait(ctx)
}

// TimedWait blocks until a notification is available, timeout
// elapses, or ctx is canceled, returning the notified EventId. See
// BlockingWait for the inflight-tracking rationale.
func (l *Listener) TimedWait(ctx context.Context, timeout time.Duration) (EventId, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrListenerClosed
	}
	l.inflight.Add(1)
	l.mu.Unlock()
	defer l.inflight.Done()
	return l.channel.TimedWait(ctx, timeout)
}

// Close detaches the Listener: its EventChannel artifact is removed
// and its DynamicConfig entry released. To avoid unmapping the
// channel's payload region out from under a BlockingWait/TimedWait
// call still parked on the semaphore, it releases the semaphore
// first (which unblocks any in-flight wait with EIDRM) and waits for
// every call that got past the closed check in TryWait/BlockingWait/
// TimedWait to return before calling channel.Close.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.channel.AcquireOwnership()
	l.mu.Unlock()

	l.channel.releaseSemaphore()
	l.inflight.Wait()

	err := l.channel.Close()
	l.svc.dynamic.tableB.deregister(l.tableIndex)
	return err
}

// Notifier is the signal-side port of an event service (§4.10). It
// fans Notify out to every attached Listener's EventChannel, mirroring
// Publisher's fan-out over Connections.
type Notifier struct {
	cfg        *Config
	svc        *Service
	id         UniquePortId
	tableIndex int

	mu       sync.Mutex
	channels map[UniquePortId]*listenerChannel
	closed   bool
}

// NewNotifier attaches a new Notifier to svc, registering it in
// DynamicConfig (§4.10 "Construction").
func NewNotifier(svc *Service) (*Notifier, error) {
	if svc.static.Pattern != MessagingPatternEvent {
		return nil, ServiceOpenErrorIncompatibleMessagingPattern
	}
	id := NewUniquePortId()
	idx, err := svc.dynamic.tableA.register(id)
	if err != nil {
		return nil, err
	}
	return &Notifier{cfg: svc.cfg, svc: svc, id: id, tableIndex: idx, channels: make(map[UniquePortId]*listenerChannel)}, nil
}

// ID returns the notifier's UniquePortId.
func (n *Notifier) ID() UniquePortId { return n.id }

// Notify signals every attached Listener's EventChannel with id
// (§4.10 "notify(EventId)"). A Listener that has vanished is pruned;
// the event itself is never lost for still-live listeners.
func (n *Notifier) Notify(id EventId) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNotifierClosed
	}
	n.updateConnectionsLocked()
	for listenerID, ch := range n.channels {
		if err := ch.Notify(id); err != nil {
			log.WithField("listener", listenerID.String()).Warn("failed to notify listener")
		}
	}
	return nil
}

func (n *Notifier) updateConnectionsLocked() {
	n.svc.dynamic.tableB.reapDead()
	live := make(map[UniquePortId]bool)
	for _, ref := range n.svc.dynamic.tableB.snapshot() {
		live[ref.id] = true
		if _, ok := n.channels[ref.id]; ok {
			continue
		}
		ch, err := openListenerChannel(n.cfg, ref.id)
		if err != nil {
			continue
		}
		n.channels[ref.id] = ch
	}
	for listenerID := range n.channels {
		if !live[listenerID] {
			delete(n.channels, listenerID)
		}
	}
}

// Close detaches the Notifier and releases its DynamicConfig entry.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	n.channels = nil
	n.svc.dynamic.tableA.deregister(n.tableIndex)
	return nil
}
