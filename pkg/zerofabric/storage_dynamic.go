package zerofabric

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"
)

// DynamicStorage is the handle interface over a named, shared region
// carrying a service's live port registry (§4.3): reference counting,
// acquire-ownership and close. Creation and opening are done by
// createDynamicConfig/openDynamicConfig, removal by Close on a handle
// that acquired ownership; listing dynamic artifacts is not provided.
// dynamicConfig is this repository's one concrete realization; a
// generic T-parameterized store was not built because DynamicConfig is
// the only header type ever instantiated here.
type DynamicStorage interface {
	ReferenceCount() uint64
	Retain() uint64
	Release() uint64
	AcquireOwnership()
	Close() error
}

const (
	dynHeaderRefCount = 0  // atomic uint64
	dynHeaderReady    = 8  // atomic uint32
	dynHeaderSize     = 16 // pad to 16
)

const portEntrySize = 32 // state(4)+pad(4)+pid(4)+sec(8)+nsec(4)+seq(4)+pad(4)

// dynamicConfig is the live registry of all ports attached to a
// service (§3 "DynamicConfig"): a reference counter plus two
// append-mostly port tables, resident in shared memory.
type dynamicConfig struct {
	region       *shmRegion
	refCount     *atomic.Uint64
	ready        *atomic.Uint32
	tableA       portTable // publishers | notifiers
	tableB       portTable // subscribers | listeners
	ownsArtifact bool
}

// portTable is a fixed-capacity array of registration entries, each a
// CAS-guarded state word plus a UniquePortId, linearly scanned (small
// N, not a hot path: registration happens once per port lifetime,
// scans happen on update_connections()).
type portTable struct {
	entries []byte
	count   int
}

func newPortTable(buf []byte, count int) portTable {
	return portTable{entries: buf[:count*portEntrySize], count: count}
}

func (t portTable) stateWord(i int) *atomic.Uint32 {
	return (*atomic.Uint32)(unsafe.Pointer(&t.entries[i*portEntrySize]))
}

func (t portTable) writeID(i int, id UniquePortId) {
	off := i*portEntrySize + 8
	binary.LittleEndian.PutUint32(t.entries[off:], id.ProcessID)
	binary.LittleEndian.PutUint64(t.entries[off+4:], uint64(id.TimeSec))
	binary.LittleEndian.PutUint32(t.entries[off+12:], id.TimeNsec)
	binary.LittleEndian.PutUint32(t.entries[off+16:], id.Sequence)
}

func (t portTable) readID(i int) UniquePortId {
	off := i*portEntrySize + 8
	return UniquePortId{
		ProcessID: binary.LittleEndian.Uint32(t.entries[off:]),
		TimeSec:   int64(binary.LittleEndian.Uint64(t.entries[off+4:])),
		TimeNsec:  binary.LittleEndian.Uint32(t.entries[off+12:]),
		Sequence:  binary.LittleEndian.Uint32(t.entries[off+16:]),
	}
}

// register claims the first free entry and stores id in it.
func (t portTable) register(id UniquePortId) (int, error) {
	for i := 0; i < t.count; i++ {
		if t.stateWord(i).CompareAndSwap(0, 1) {
			t.writeID(i, id)
			return i, nil
		}
	}
	return 0, PortCreateErrorExceedsMaxSupportedPorts
}

// deregister frees entry i.
func (t portTable) deregister(i int) {
	t.stateWord(i).Store(0)
}

// snapshot returns the currently alive entries (index, id) pairs.
func (t portTable) snapshot() []portEntryRef {
	out := make([]portEntryRef, 0, t.count)
	for i := 0; i < t.count; i++ {
		if t.stateWord(i).Load() == 1 {
			out = append(out, portEntryRef{index: i, id: t.readID(i)})
		}
	}
	return out
}

// reapDead deregisters every entry whose owning process is no longer
// alive (§5 "Crash safety": a non-destructive liveness check on the
// embedded process id distinguishes a merely slow peer from a dead
// one). Peers call this before scanning for connection membership so
// a crashed process that never called Close is still treated as
// vanished instead of lingering forever in DynamicConfig.
func (t portTable) reapDead() {
	for i := 0; i < t.count; i++ {
		if t.stateWord(i).Load() != 1 {
			continue
		}
		id := t.readID(i)
		if !processIsAlive(id.ProcessID) {
			t.deregister(i)
		}
	}
}

type portEntryRef struct {
	index int
	id    UniquePortId
}

// dynamicConfigLayout describes the table sizes needed for a given
// StaticConfig (pub/sub maxima or event maxima).
func dynamicConfigLayout(cfg *StaticConfig) (aCount, bCount int) {
	switch cfg.Pattern {
	case MessagingPatternPublishSubscribe:
		return int(cfg.PubSub.MaxPublishers), int(cfg.PubSub.MaxSubscribers)
	case MessagingPatternEvent:
		return int(cfg.Event.MaxNotifiers), int(cfg.Event.MaxListeners)
	default:
		return 0, 0
	}
}

func dynamicConfigSize(cfg *StaticConfig) int {
	a, b := dynamicConfigLayout(cfg)
	return dynHeaderSize + a*portEntrySize + b*portEntrySize
}

// createDynamicConfig creates the DynamicConfig shared-memory segment
// for a brand new service, publishing readiness once initialized
// (§4.3 "two-phase initialize-then-publish").
func createDynamicConfig(path string, cfg *StaticConfig) (*dynamicConfig, error) {
	size := dynamicConfigSize(cfg)
	region, err := createShmRegion(path, size)
	if err != nil {
		return nil, err
	}
	d := wrapDynamicConfig(region, cfg)
	d.refCount.Store(1)
	d.ready.Store(1)
	return d, nil
}

// openDynamicConfig opens an existing DynamicConfig, spinning briefly
// until the readiness flag is set (§4.3). tryOnly=true fails
// immediately instead of spinning.
func openDynamicConfig(path string, cfg *StaticConfig, tryOnly bool) (*dynamicConfig, error) {
	size := dynamicConfigSize(cfg)
	region, err := openShmRegion(path, size)
	if err != nil {
		return nil, err
	}
	d := wrapDynamicConfig(region, cfg)
	deadline := time.Now().Add(2 * time.Second)
	for d.ready.Load() == 0 {
		if tryOnly || time.Now().After(deadline) {
			region.Close()
			return nil, fmt.Errorf("zerofabric: dynamic config %q never became ready", path)
		}
		time.Sleep(time.Millisecond)
	}
	return d, nil
}

func wrapDynamicConfig(region *shmRegion, cfg *StaticConfig) *dynamicConfig {
	a, b := dynamicConfigLayout(cfg)
	rest := region.data[dynHeaderSize:]
	return &dynamicConfig{
		region:   region,
		refCount: (*atomic.Uint64)(unsafe.Pointer(&region.data[dynHeaderRefCount])),
		ready:    (*atomic.Uint32)(unsafe.Pointer(&region.data[dynHeaderReady])),
		tableA:   newPortTable(rest, a),
		tableB:   newPortTable(rest[a*portEntrySize:], b),
	}
}

func (d *dynamicConfig) ReferenceCount() uint64 { return d.refCount.Load() }

// Retain increments the reference counter via CAS (§4.7 "Open").
func (d *dynamicConfig) Retain() uint64 {
	for {
		v := d.refCount.Load()
		if v == 0 {
			return 0 // service is being torn down; caller must treat as absent
		}
		if d.refCount.CompareAndSwap(v, v+1) {
			return v + 1
		}
	}
}

// Release decrements the reference counter via CAS and returns the
// new value (§4.7 "Drop").
func (d *dynamicConfig) Release() uint64 {
	for {
		v := d.refCount.Load()
		if v == 0 {
			return 0
		}
		if d.refCount.CompareAndSwap(v, v-1) {
			return v - 1
		}
	}
}

func (d *dynamicConfig) AcquireOwnership() { d.ownsArtifact = true }

func (d *dynamicConfig) Close() error {
	if d == nil || d.region == nil {
		return nil
	}
	owns := d.ownsArtifact
	path := d.region.path
	if err := d.region.Close(); err != nil {
		return err
	}
	if owns {
		if err := removeIfExists(path); err != nil {
			return err
		}
	}
	return nil
}
