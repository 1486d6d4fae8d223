package zerofabric

// payloadSlotSize is the size of one Message: Header + user payload,
// rounded up to the payload's alignment (§3 "Message", §4.8).
func payloadSlotSize(qos *PubSubQoS) int {
	size := HeaderSize + int(qos.Payload.Size)
	align := int(qos.Payload.Alignment)
	if align > 1 {
		size = (size + align - 1) / align * align
	}
	return size
}

// poolCapacity sizes the publisher's pool to cover history plus max
// borrowed plus buffered-per-subscriber across every subscriber slot,
// with a small fixed headroom for in-flight loans (§4.8 "Construction").
func poolCapacity(qos *PubSubQoS) int {
	perSubscriber := int(qos.SubscriberMaxBorrowedSamples) + int(qos.SubscriberMaxBufferSize)
	capacity := int(qos.HistorySize) + perSubscriber*int(qos.MaxSubscribers) + 4
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}

// createPayloadPool creates the publisher's own shared-memory payload
// pool artifact.
func createPayloadPool(cfg *Config, publisher UniquePortId, qos *PubSubQoS) (*slotPool, *shmRegion, error) {
	slotSize := payloadSlotSize(qos)
	capacity := poolCapacity(qos)
	path := poolPath(cfg, publisher)
	region, err := createShmRegion(path, poolSize(roundUpPow2(capacity), slotSize))
	if err != nil {
		return nil, nil, PortCreateErrorUnableToCreatePayloadPool
	}
	pool := newSlotPool(region.data, roundUpPow2(capacity), slotSize, true)
	return pool, region, nil
}

// openPayloadPool opens a publisher's existing payload pool, as a
// subscriber does when establishing a Connection to it (§4.5).
func openPayloadPool(cfg *Config, publisher UniquePortId, qos *PubSubQoS) (*slotPool, *shmRegion, error) {
	slotSize := payloadSlotSize(qos)
	capacity := roundUpPow2(poolCapacity(qos))
	path := poolPath(cfg, publisher)
	region, err := openShmRegion(path, poolSize(capacity, slotSize))
	if err != nil {
		return nil, nil, err
	}
	pool := newSlotPool(region.data, capacity, slotSize, false)
	return pool, region, nil
}
