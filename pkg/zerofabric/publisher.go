package zerofabric

import (
	"sync"
	"sync/atomic"
	"time"
)

// Publisher is the write-side port of a publish-subscribe service
// (§4.8), grounded on pubsub.go's Publisher/PublisherBuilder shape.
// It owns a payload pool and maintains one Connection per attached
// Subscriber, fanning sent Messages out to every connection's
// submission queue.
type Publisher struct {
	cfg        *Config
	svc        *Service
	id         UniquePortId
	qos        *PubSubQoS
	tableIndex int
	pool       *slotPool
	poolRegion *shmRegion

	mu          sync.Mutex
	connections map[UniquePortId]*connection
	// pending is the number of outstanding readers (subscriber
	// connections plus, if still inside the history window, one virtual
	// "history" reader) each loaned slot still owes a reclaim to. A
	// slot is returned to the pool once its count reaches zero. Only
	// the publisher goroutine touches this map, so it needs no lock
	// beyond mu.
	pending map[uint32]int
	history []uint32

	sequence atomic.Uint64
	closed   atomic.Bool
}

// NewPublisher attaches a new Publisher to svc, registering it in the
// service's DynamicConfig and creating its payload pool (§4.8
// "Construction").
func NewPublisher(svc *Service) (*Publisher, error) {
	if svc.static.Pattern != MessagingPatternPublishSubscribe {
		return nil, ServiceOpenErrorIncompatibleMessagingPattern
	}
	qos := svc.static.PubSub
	id := NewUniquePortId()

	idx, err := svc.dynamic.tableA.register(id)
	if err != nil {
		return nil, err
	}

	pool, region, err := createPayloadPool(svc.cfg, id, qos)
	if err != nil {
		svc.dynamic.tableA.deregister(idx)
		return nil, err
	}

	return &Publisher{
		cfg:         svc.cfg,
		svc:         svc,
		id:          id,
		qos:         qos,
		tableIndex:  idx,
		pool:        pool,
		poolRegion:  region,
		connections: make(map[UniquePortId]*connection),
		pending:     make(map[uint32]int),
	}, nil
}

// ID returns the publisher's UniquePortId.
func (p *Publisher) ID() UniquePortId { return p.id }

// Loan updates connection membership, then reserves one payload slot
// from the publisher's pool, draining reclaimed slots from subscriber
// connections first if the pool looks exhausted (§4.8 "Loan").
func (p *Publisher) Loan() (*Slot, error) {
	if p.closed.Load() {
		return nil, ErrPublisherClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.updateConnectionsLocked()

	idx, err := p.pool.allocate()
	if err == errPoolExhausted {
		p.reclaimLocked()
		idx, err = p.pool.allocate()
	}
	if err != nil {
		return nil, ErrOutOfMemory
	}
	p.pending[idx] = 0
	return &Slot{index: idx, pool: p.pool}, nil
}

// Discard releases a loaned Slot back to the pool without sending it.
func (p *Publisher) Discard(s *Slot) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, s.index)
	p.pool.deallocate(s.index)
}

// Send publishes a loaned Slot to every currently attached Subscriber
// (§4.8 "Send"): it updates connection membership, drains every
// connection's reclamation queue, stamps the in-band Header, fans the
// slot index out to each connection's submission queue, and pins the
// slot in the history ring when HistorySize > 0.
func (p *Publisher) Send(s *Slot) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.updateConnectionsLocked()
	p.reclaimLocked()

	seq := p.sequence.Add(1)
	now := time.Now()
	h := Header{PublisherProcessID: p.id.ProcessID, TimeSec: now.Unix(), TimeNsec: uint32(now.Nanosecond()), Sequence: seq}
	encodeHeader(p.pool.bytes(s.index), h)

	readers := 0
	for subID, conn := range p.connections {
		displaced, hadDisplaced, err := conn.submission.push(s.index)
		if err != nil {
			log.WithField("subscriber", subID.String()).Warn("submission queue full, dropping message for this subscriber")
			continue
		}
		readers++
		if hadDisplaced {
			p.reclaimIndexLocked(displaced)
		}
	}

	if p.qos.HistorySize > 0 {
		readers++
		p.history = append(p.history, s.index)
		if uint64(len(p.history)) > p.qos.HistorySize {
			evicted := p.history[0]
			p.history = p.history[1:]
			p.reclaimIndexLocked(evicted)
		}
	}

	p.pending[s.index] = readers
	if readers == 0 {
		// Nobody will ever reclaim this slot; it is safe to free now.
		delete(p.pending, s.index)
		p.pool.deallocate(s.index)
	}
	return nil
}

// updateConnectionsLocked implements §4.8 "update_connections": attach
// a Connection to every Subscriber currently registered in
// DynamicConfig that this Publisher does not yet know about, replaying
// history into the new connection, and tear down connections whose
// Subscriber has vanished. When the history holds more entries than
// SubscriberMaxBufferSize, only the newest SubscriberMaxBufferSize of
// them are replayed, oldest first.
func (p *Publisher) updateConnectionsLocked() {
	p.svc.dynamic.tableB.reapDead()
	live := make(map[UniquePortId]bool)
	for _, ref := range p.svc.dynamic.tableB.snapshot() {
		live[ref.id] = true
		if _, ok := p.connections[ref.id]; ok {
			continue
		}
		conn, err := createOrOpenConnection(p.cfg, p.qos, p.id, ref.id, p.pool, p.poolRegion)
		if err != nil {
			log.WithField("subscriber", ref.id.String()).Warn("unable to create connection to new subscriber")
			continue
		}
		p.connections[ref.id] = conn
		replay := p.history
		if max := int(p.qos.SubscriberMaxBufferSize); len(replay) > max {
			replay = replay[len(replay)-max:]
		}
		for _, idx := range replay {
			if _, _, err := conn.submission.push(idx); err == nil {
				p.pending[idx]++
			}
		}
	}
	for subID, conn := range p.connections {
		if live[subID] {
			continue
		}
		conn.drainSubmissionIntoReclamation()
		p.reclaimFromConnLocked(conn)
		conn.AcquireOwnership()
		conn.Close()
		delete(p.connections, subID)
	}
}

// reclaimLocked drains every connection's reclamation queue, returning
// fully-reclaimed slots to the pool.
func (p *Publisher) reclaimLocked() {
	for _, conn := range p.connections {
		p.reclaimFromConnLocked(conn)
	}
}

func (p *Publisher) reclaimFromConnLocked(conn *connection) {
	for {
		idx, err := conn.reclamation.pop()
		if err != nil {
			return
		}
		p.reclaimIndexLocked(idx)
	}
}

func (p *Publisher) reclaimIndexLocked(idx uint32) {
	n, ok := p.pending[idx]
	if !ok {
		return
	}
	n--
	if n <= 0 {
		delete(p.pending, idx)
		p.pool.deallocate(idx)
		return
	}
	p.pending[idx] = n
}

// Close detaches the Publisher: every Connection is torn down and the
// publisher's pool and DynamicConfig entry are released.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.mu.Lock()
	for _, conn := range p.connections {
		conn.AcquireOwnership()
		conn.Close()
	}
	p.connections = nil
	p.mu.Unlock()

	p.svc.dynamic.tableA.deregister(p.tableIndex)
	p.poolRegion.Close()
	return removeIfExists(p.poolRegion.path)
}
