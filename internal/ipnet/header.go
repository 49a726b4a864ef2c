package ipnet

/*------------------------------------------------------------------
 *
 * Purpose:	IPv4 header encode/decode and the one's-complement
 *		checksum shared by IPv4 and ICMPv4.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

// HeaderLen is the fixed IPv4 header size this stack uses (no options).
const HeaderLen = 20

// Header is a fixed, option-free IPv4 header.
type Header struct {
	VersionIHL    byte
	TOS           byte
	TotalLength   uint16
	Identification uint16
	FlagsFragOff  uint16
	TTL           byte
	Protocol      byte
	Checksum      uint16
	SrcIP         [4]byte
	DstIP         [4]byte
}

// NewHeader builds a version-4, IHL-5 header with its checksum computed.
func NewHeader(totalLength, identification uint16, ttl, protocol byte, src, dst [4]byte) Header {
	h := Header{
		VersionIHL:  0x45,
		TotalLength: totalLength,
		Identification: identification,
		TTL:         ttl,
		Protocol:    protocol,
		SrcIP:       src,
		DstIP:       dst,
	}
	h.Checksum = h.calculateChecksum()
	return h
}

// HeaderFromBytes parses a 20-byte IPv4 header.
func HeaderFromBytes(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("ipnet: header too short: %d bytes", len(b))
	}
	var h Header
	h.VersionIHL = b[0]
	h.TOS = b[1]
	h.TotalLength = binary.BigEndian.Uint16(b[2:4])
	h.Identification = binary.BigEndian.Uint16(b[4:6])
	h.FlagsFragOff = binary.BigEndian.Uint16(b[6:8])
	h.TTL = b[8]
	h.Protocol = b[9]
	h.Checksum = binary.BigEndian.Uint16(b[10:12])
	copy(h.SrcIP[:], b[12:16])
	copy(h.DstIP[:], b[16:20])
	return h, nil
}

// IHL returns the header length in bytes (version_ihl's low nibble * 4).
func (h Header) IHL() int {
	return int(h.VersionIHL&0x0F) * 4
}

// ToBytes serializes the 20-byte header.
func (h Header) ToBytes() []byte {
	b := make([]byte, HeaderLen)
	b[0] = h.VersionIHL
	b[1] = h.TOS
	binary.BigEndian.PutUint16(b[2:4], h.TotalLength)
	binary.BigEndian.PutUint16(b[4:6], h.Identification)
	binary.BigEndian.PutUint16(b[6:8], h.FlagsFragOff)
	b[8] = h.TTL
	b[9] = h.Protocol
	binary.BigEndian.PutUint16(b[10:12], h.Checksum)
	copy(b[12:16], h.SrcIP[:])
	copy(b[16:20], h.DstIP[:])
	return b
}

func (h Header) calculateChecksum() uint16 {
	tmp := h
	tmp.Checksum = 0
	return Checksum(tmp.ToBytes())
}

// Checksum is the IPv4/ICMPv4 one's-complement checksum over b (padded
// with a trailing zero byte if b has odd length).
func Checksum(b []byte) uint16 {
	if len(b)%2 != 0 {
		b = append(append([]byte(nil), b...), 0)
	}
	var sum uint32
	for i := 0; i < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// VerifyChecksum reports whether b validates: summing the whole buffer
// with its checksum field intact folds to 0xFFFF.
func VerifyChecksum(b []byte) bool {
	var sum uint32
	buf := b
	if len(buf)%2 != 0 {
		buf = append(append([]byte(nil), buf...), 0)
	}
	for i := 0; i < len(buf); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(buf[i : i+2]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return sum&0xFFFF == 0xFFFF
}
