package phy

/*------------------------------------------------------------------
 *
 * Purpose:	Frame assembler/disassembler for the acoustic PHY.
 *
 * Description:	Wire layout, 5 + len(Data) bytes total:
 *
 *			[len_hi][len_lo][crc8][type][seq][payload...]
 *
 *		The CRC-8 is computed over the payload bytes only.
 *
 *------------------------------------------------------------------*/

import "fmt"

// MaxFrameDataSize bounds the payload a single PHY frame may carry.
const MaxFrameDataSize = 1024

// FrameType distinguishes data frames from their acknowledgements.
type FrameType byte

const (
	// Data carries an upper-layer payload.
	Data FrameType = 0x01
	// Ack acknowledges receipt of a Data frame with the same Sequence.
	Ack FrameType = 0x02
)

func (t FrameType) String() string {
	switch t {
	case Data:
		return "Data"
	case Ack:
		return "Ack"
	default:
		return fmt.Sprintf("FrameType(0x%02x)", byte(t))
	}
}

func frameTypeFromByte(b byte) (FrameType, bool) {
	switch FrameType(b) {
	case Data, Ack:
		return FrameType(b), true
	default:
		return 0, false
	}
}

// Frame is a single PHY protocol data unit.
type Frame struct {
	Type     FrameType
	Sequence byte
	Data     []byte
}

// NewDataFrame builds a Data frame.
func NewDataFrame(seq byte, data []byte) Frame {
	return Frame{Type: Data, Sequence: seq, Data: data}
}

// NewAckFrame builds an Ack frame for the given sequence.
func NewAckFrame(seq byte) Frame {
	return Frame{Type: Ack, Sequence: seq}
}

// Header is the fixed 5-byte frame header, decoded independently of the
// payload so the decoder can validate a candidate length before committing
// to decoding the (possibly much longer) payload.
type Header struct {
	Length   uint16
	CRC      byte
	Type     FrameType
	Sequence byte
}

// HeaderBits is the number of line-coded bits in a frame header.
const HeaderBits = 40

// Serialize encodes the frame into its wire byte representation.
func (f Frame) Serialize() []byte {
	out := make([]byte, 0, 5+len(f.Data))
	length := uint16(len(f.Data))
	crc := CRC8(f.Data)
	out = append(out, byte(length>>8), byte(length&0xFF), crc, byte(f.Type), f.Sequence)
	out = append(out, f.Data...)
	return out
}

// SerializeBits encodes the frame into MSB-first line-coding input bits.
func (f Frame) SerializeBits() []int {
	return BytesToBits(f.Serialize())
}

// SizeBytes is the total wire size of the frame, including the header.
func (f Frame) SizeBytes() int {
	return 5 + len(f.Data)
}

// ParseHeader decodes only the fixed 5-byte header.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < 5 {
		return Header{}, fmt.Errorf("phy: header too short: %d bytes", len(b))
	}
	ft, ok := frameTypeFromByte(b[3])
	if !ok {
		return Header{}, fmt.Errorf("phy: unknown frame type 0x%02x", b[3])
	}
	return Header{
		Length:   uint16(b[0])<<8 | uint16(b[1]),
		CRC:      b[2],
		Type:     ft,
		Sequence: b[4],
	}, nil
}

// Parse deserializes a frame from its wire byte representation, verifying
// the CRC over the payload. The input may contain trailing bytes past the
// end of the frame; only the first 5+Length bytes are consumed.
func Parse(b []byte) (Frame, error) {
	hdr, err := ParseHeader(b)
	if err != nil {
		return Frame{}, err
	}
	if len(b) < 5+int(hdr.Length) {
		return Frame{}, fmt.Errorf("phy: frame data incomplete: need %d bytes, have %d", 5+int(hdr.Length), len(b))
	}
	payload := b[5 : 5+int(hdr.Length)]
	if !VerifyCRC8(payload, hdr.CRC) {
		return Frame{}, fmt.Errorf("phy: CRC check failed")
	}
	data := make([]byte, len(payload))
	copy(data, payload)
	return Frame{Type: hdr.Type, Sequence: hdr.Sequence, Data: data}, nil
}

// ParseBits deserializes a frame from MSB-first bits.
func ParseBits(bits []int) (Frame, error) {
	return Parse(BitsToBytes(bits))
}
