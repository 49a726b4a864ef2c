package ipnet

/*------------------------------------------------------------------
 *
 * Purpose:	ICMPv4 echo request/reply encode/decode, reusing the IPv4
 *		one's-complement checksum.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
)

// ICMPType is the ICMP message type byte.
type ICMPType byte

const (
	ICMPEchoReply   ICMPType = 0
	ICMPEchoRequest ICMPType = 8
)

// ICMPPacket is an ICMP echo request/reply, the only ICMP message shape
// this stack generates or parses.
type ICMPPacket struct {
	Type     ICMPType
	Code     byte
	Checksum uint16
	ID       uint16
	Seq      uint16
	Payload  []byte
}

// NewICMPPacket builds a packet and computes its checksum.
func NewICMPPacket(t ICMPType, code byte, id, seq uint16, payload []byte) ICMPPacket {
	p := ICMPPacket{Type: t, Code: code, ID: id, Seq: seq, Payload: payload}
	p.Checksum = Checksum(p.toBytesWithChecksum(0))
	return p
}

// ICMPPacketFromBytes parses an 8-byte-header ICMP packet.
func ICMPPacketFromBytes(b []byte) (ICMPPacket, error) {
	if len(b) < 8 {
		return ICMPPacket{}, fmt.Errorf("ipnet: icmp packet too short: %d bytes", len(b))
	}
	return ICMPPacket{
		Type:     ICMPType(b[0]),
		Code:     b[1],
		Checksum: binary.BigEndian.Uint16(b[2:4]),
		ID:       binary.BigEndian.Uint16(b[4:6]),
		Seq:      binary.BigEndian.Uint16(b[6:8]),
		Payload:  append([]byte(nil), b[8:]...),
	}, nil
}

func (p ICMPPacket) toBytesWithChecksum(checksum uint16) []byte {
	b := make([]byte, 8+len(p.Payload))
	b[0] = byte(p.Type)
	b[1] = p.Code
	binary.BigEndian.PutUint16(b[2:4], checksum)
	binary.BigEndian.PutUint16(b[4:6], p.ID)
	binary.BigEndian.PutUint16(b[6:8], p.Seq)
	copy(b[8:], p.Payload)
	return b
}

// ToBytes serializes the packet with its stored checksum.
func (p ICMPPacket) ToBytes() []byte {
	return p.toBytesWithChecksum(p.Checksum)
}
