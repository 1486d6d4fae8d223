package zerofabric

import "encoding/binary"

// HeaderSize is the fixed, in-band transport header every slot
// carries ahead of the user payload (§3 "Message", §4.11).
const HeaderSize = 4 + 8 + 4 + 8 // publisher pid + time sec + time nsec + sequence

// Header is the transport header carried in-band with every Message:
// publisher id, send timestamp (monotonic-ish wall clock), and a
// publisher-local sequence number (§4.11).
type Header struct {
	PublisherProcessID uint32
	TimeSec            int64
	TimeNsec           uint32
	Sequence           uint64
}

func encodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[0:4], h.PublisherProcessID)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.TimeSec))
	binary.LittleEndian.PutUint32(buf[12:16], h.TimeNsec)
	binary.LittleEndian.PutUint64(buf[16:24], h.Sequence)
}

func decodeHeader(buf []byte) Header {
	return Header{
		PublisherProcessID: binary.LittleEndian.Uint32(buf[0:4]),
		TimeSec:            int64(binary.LittleEndian.Uint64(buf[4:12])),
		TimeNsec:           binary.LittleEndian.Uint32(buf[12:16]),
		Sequence:           binary.LittleEndian.Uint64(buf[16:24]),
	}
}
