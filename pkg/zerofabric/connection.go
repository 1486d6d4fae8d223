package zerofabric

import (
	"os"
	"path/filepath"
)

// poolArtifactSuffix names a publisher's payload pool artifact. The
// spec's configuration knobs (§6) only enumerate suffixes for
// static/dynamic config, connection, and event artifacts; the pool
// suffix is not user-configurable here since it is purely an
// implementation detail the publisher and its own pool agree on.
const poolArtifactSuffix = ".pool"

func poolPath(cfg *Config, publisher UniquePortId) string {
	return filepath.Join(cfg.serviceDir(), publisher.String()+poolArtifactSuffix)
}

func connectionName(publisher, subscriber UniquePortId) string {
	return publisher.String() + "_" + subscriber.String()
}

func connectionPath(cfg *Config, publisher, subscriber UniquePortId) string {
	return filepath.Join(cfg.serviceDir(), connectionName(publisher, subscriber)+cfg.Service.ConnectionSuffix)
}

// connection is the directed transport resource between one publisher
// and one subscriber (§3, §4.5): a submission queue (publisher ->
// subscriber) and a reclamation queue (subscriber -> publisher), plus
// a reference to the publisher's payload pool.
type connection struct {
	name          string
	region        *shmRegion
	submission    *indexQueue
	reclamation   *indexQueue
	pool          *slotPool
	poolRegion    *shmRegion
	publisherID   UniquePortId
	subscriberID  UniquePortId
	ownsArtifact  bool
}

func connectionLayout(bufferSize, maxBorrowed, historySize int) (subCap, reclaimCap int) {
	return bufferSize, maxBorrowed + bufferSize + historySize
}

func connectionSize(bufferSize, maxBorrowed, historySize int) int {
	subCap, reclaimCap := connectionLayout(bufferSize, maxBorrowed, historySize)
	return indexQueueSize(subCap) + indexQueueSize(reclaimCap)
}

// createOrOpenConnection creates the Connection artifact if it does
// not exist yet, or opens it if a peer raced ahead and created it
// first -- creation is idempotent under name equality (§4.5).
func createOrOpenConnection(cfg *Config, qos *PubSubQoS, publisher, subscriber UniquePortId, pool *slotPool, poolRegion *shmRegion) (*connection, error) {
	path := connectionPath(cfg, publisher, subscriber)
	size := connectionSize(int(qos.SubscriberMaxBufferSize), int(qos.SubscriberMaxBorrowedSamples), int(qos.HistorySize))

	region, err := createShmRegion(path, size)
	init := true
	if err != nil {
		if !os.IsExist(err) {
			return nil, err
		}
		region, err = openShmRegion(path, size)
		if err != nil {
			return nil, err
		}
		init = false
	}

	subCap, reclaimCap := connectionLayout(int(qos.SubscriberMaxBufferSize), int(qos.SubscriberMaxBorrowedSamples), int(qos.HistorySize))
	subBytes := indexQueueSize(subCap)
	return &connection{
		name:         connectionName(publisher, subscriber),
		region:       region,
		submission:   newIndexQueue(region.data[:subBytes], subCap, qos.EnableSafeOverflow, init),
		reclamation:  newIndexQueue(region.data[subBytes:], reclaimCap, false, init),
		pool:         pool,
		poolRegion:   poolRegion,
		publisherID:  publisher,
		subscriberID: subscriber,
	}, nil
}

func (c *connection) AcquireOwnership() { c.ownsArtifact = true }

func (c *connection) Close() error {
	if c == nil || c.region == nil {
		return nil
	}
	owns := c.ownsArtifact
	path := c.region.path
	if err := c.region.Close(); err != nil {
		return err
	}
	if owns {
		return removeIfExists(path)
	}
	return nil
}

// drainSubmissionIntoReclamation moves every still-queued index from
// the submission queue to the reclamation queue so no slot is
// orphaned when a subscriber discovers its publisher has vanished
// (§4.9 "update_connections").
func (c *connection) drainSubmissionIntoReclamation() {
	for {
		idx, err := c.submission.pop()
		if err != nil {
			return
		}
		if _, _, err := c.reclamation.push(idx); err != nil {
			log.WithField("connection", c.name).Warn("could not drain submission queue into reclamation queue on teardown")
			return
		}
	}
}
