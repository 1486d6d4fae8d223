package zerofabric

import "sync"

// Subscriber is the read-side port of a publish-subscribe service
// (§4.9), grounded on pubsub.go's Subscriber shape. It maintains one
// Connection per attached Publisher and enforces the subscriber's
// max-borrowed-samples QoS across every Sample currently outstanding.
type Subscriber struct {
	cfg        *Config
	svc        *Service
	id         UniquePortId
	qos        *PubSubQoS
	tableIndex int

	mu          sync.Mutex
	connections map[UniquePortId]*connection
	order       []UniquePortId // round-robin fairness across publishers
	next        int
	borrowed    int
	closed      bool
}

// NewSubscriber attaches a new Subscriber to svc, registering it in
// the service's DynamicConfig (§4.9 "Construction").
func NewSubscriber(svc *Service) (*Subscriber, error) {
	if svc.static.Pattern != MessagingPatternPublishSubscribe {
		return nil, ServiceOpenErrorIncompatibleMessagingPattern
	}
	qos := svc.static.PubSub
	id := NewUniquePortId()

	idx, err := svc.dynamic.tableB.register(id)
	if err != nil {
		return nil, err
	}

	return &Subscriber{
		cfg:         svc.cfg,
		svc:         svc,
		id:          id,
		qos:         qos,
		tableIndex:  idx,
		connections: make(map[UniquePortId]*connection),
	}, nil
}

// ID returns the subscriber's UniquePortId.
func (s *Subscriber) ID() UniquePortId { return s.id }

// Receive returns the next available Sample across every attached
// Publisher, or ErrNoData if none is queued. It enforces
// SubscriberMaxBorrowedSamples by refusing to accept another Sample
// (without losing the queued message) once the limit is reached
// (§4.9 "Receive", §8 "max borrowed").
func (s *Subscriber) Receive() (*Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSubscriberClosed
	}

	s.updateConnectionsLocked()

	if uint64(s.borrowed) >= s.qos.SubscriberMaxBorrowedSamples {
		return nil, ErrTooManySamplesHeld
	}
	if len(s.order) == 0 {
		return nil, ErrNoData
	}

	for n := 0; n < len(s.order); n++ {
		i := (s.next + n) % len(s.order)
		pubID := s.order[i]
		conn := s.connections[pubID]
		idx, err := conn.submission.pop()
		if err != nil {
			continue
		}
		s.next = (i + 1) % len(s.order)
		s.borrowed++
		header := decodeHeader(conn.pool.bytes(idx))
		return &Sample{index: idx, pool: conn.pool, conn: conn, sub: s, header: header}, nil
	}
	return nil, ErrNoData
}

// updateConnectionsLocked implements §4.9 "update_connections": attach
// to every Publisher currently registered that this Subscriber does
// not yet know about, and tear down + drain connections whose
// Publisher has vanished so no slot index is lost.
func (s *Subscriber) updateConnectionsLocked() {
	s.svc.dynamic.tableA.reapDead()
	live := make(map[UniquePortId]bool)
	for _, ref := range s.svc.dynamic.tableA.snapshot() {
		live[ref.id] = true
		if _, ok := s.connections[ref.id]; ok {
			continue
		}
		pool, poolRegion, err := openPayloadPool(s.cfg, ref.id, s.qos)
		if err != nil {
			log.WithField("publisher", ref.id.String()).Warn("unable to open publisher payload pool")
			continue
		}
		conn, err := createOrOpenConnection(s.cfg, s.qos, ref.id, s.id, pool, poolRegion)
		if err != nil {
			log.WithField("publisher", ref.id.String()).Warn("unable to create connection to new publisher")
			poolRegion.Close()
			continue
		}
		s.connections[ref.id] = conn
		s.order = append(s.order, ref.id)
	}
	for pubID, conn := range s.connections {
		if live[pubID] {
			continue
		}
		conn.drainSubmissionIntoReclamation()
		conn.Close()
		if conn.poolRegion != nil {
			conn.poolRegion.Close()
		}
		delete(s.connections, pubID)
		for i, id := range s.order {
			if id == pubID {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// releaseSample decrements the outstanding-borrow count; called by
// Sample.Release through the Subscriber that produced it.
func (s *Subscriber) releaseSample() {
	s.mu.Lock()
	if s.borrowed > 0 {
		s.borrowed--
	}
	s.mu.Unlock()
}

// Close detaches the Subscriber: every Connection is torn down (after
// draining any queued indices back to their publisher) and the
// subscriber's DynamicConfig entry is released.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, conn := range s.connections {
		conn.drainSubmissionIntoReclamation()
		conn.Close()
		if conn.poolRegion != nil {
			conn.poolRegion.Close()
		}
	}
	s.connections = nil
	s.mu.Unlock()

	s.svc.dynamic.tableB.deregister(s.tableIndex)
	return nil
}
