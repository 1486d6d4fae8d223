package zerofabric

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// portSequence is an intra-process counter that disambiguates
// UniquePortIds created within the same nanosecond.
var portSequence atomic.Uint32

// UniquePortId is a process-system-unique identifier for a publisher,
// subscriber, notifier, or listener, derived from {process id,
// wall-clock timestamp, intra-process counter}.
//
// The source this fabric is modeled on bit-packs
// (pid<<96)|(sec<<32)|nsec into a 128-bit value; with a 64-bit
// "sec" field that packing silently loses bits once the high end of
// the shift overflows 128 bits (see spec Open Question, §9). This
// type keeps every field at its natural width instead, so nothing is
// silently truncated.
type UniquePortId struct {
	ProcessID uint32
	TimeSec   int64
	TimeNsec  uint32
	Sequence  uint32
}

// NewUniquePortId creates a system-wide unique port id.
func NewUniquePortId() UniquePortId {
	now := time.Now()
	return UniquePortId{
		ProcessID: uint32(os.Getpid()),
		TimeSec:   now.Unix(),
		TimeNsec:  uint32(now.Nanosecond()),
		Sequence:  portSequence.Add(1),
	}
}

// String renders the id the way it is embedded into artifact names
// (§6: "{publisher_id}_{subscriber_id}", "{listener_pid}_{listener_id}").
func (id UniquePortId) String() string {
	return fmt.Sprintf("%08x%016x%08x%08x", id.ProcessID, uint64(id.TimeSec), id.TimeNsec, id.Sequence)
}

// Equal reports whether two UniquePortIds are the same value.
func (id UniquePortId) Equal(other UniquePortId) bool {
	return id == other
}

// Less provides a total order over UniquePortIds, useful for stable
// registration-order iteration when timestamps tie.
func (id UniquePortId) Less(other UniquePortId) bool {
	if id.TimeSec != other.TimeSec {
		return id.TimeSec < other.TimeSec
	}
	if id.TimeNsec != other.TimeNsec {
		return id.TimeNsec < other.TimeNsec
	}
	if id.ProcessID != other.ProcessID {
		return id.ProcessID < other.ProcessID
	}
	return id.Sequence < other.Sequence
}
