package ipnet

/*------------------------------------------------------------------
 *
 * Purpose:	IP fragmentation and reassembly: splits an oversized
 *		datagram into 8-byte-aligned fragments at a given MTU, and
 *		reassembles fragments keyed by (identification, source IP)
 *		back into the original datagram.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// moreFragmentsBit is bit 13 of the flags/fragment-offset field.
const moreFragmentsBit = 0x2000
const fragmentOffsetMask = 0x1FFF

// Fragmenter splits oversized IPv4 datagrams into MTU-sized fragments.
// It owns the monotonically increasing identification counter; every
// datagram it splits gets a fresh identification of its own.
type Fragmenter struct {
	mtu       int
	nextIdent uint16
}

// NewFragmenter builds a Fragmenter targeting the given MTU (the
// fragment's total on-wire size, header included).
func NewFragmenter(mtu int) *Fragmenter {
	return &Fragmenter{mtu: mtu}
}

// Fragment splits packet (a full IPv4 datagram, header plus payload)
// into fragments no larger than the configured MTU. A packet already at
// or under the MTU is returned unchanged as a single-element slice.
func (f *Fragmenter) Fragment(packet []byte) ([][]byte, error) {
	if len(packet) <= f.mtu {
		return [][]byte{packet}, nil
	}
	if len(packet) < HeaderLen {
		return nil, fmt.Errorf("ipnet: packet too small for header: %d bytes", len(packet))
	}

	ihl := int(packet[0]&0x0F) * 4
	if ihl < HeaderLen || ihl > len(packet) {
		return nil, fmt.Errorf("ipnet: invalid IHL %d", ihl)
	}

	header := append([]byte(nil), packet[:ihl]...)
	data := packet[ihl:]

	maxDataPerFragment := ((f.mtu - ihl) / 8) * 8
	if maxDataPerFragment <= 0 {
		return nil, fmt.Errorf("ipnet: MTU %d too small to carry any 8-byte-aligned data with a %d-byte header", f.mtu, ihl)
	}

	ident := f.nextIdent
	f.nextIdent++

	var fragments [][]byte
	offset := 0
	for offset < len(data) {
		chunkSize := maxDataPerFragment
		if remaining := len(data) - offset; chunkSize > remaining {
			chunkSize = remaining
		}
		chunk := data[offset : offset+chunkSize]
		moreFragments := offset+chunkSize < len(data)
		fragOffset := uint16(offset / 8)

		frag := make([]byte, 0, ihl+chunkSize)
		frag = append(frag, header...)
		binary.BigEndian.PutUint16(frag[2:4], uint16(ihl+chunkSize))
		binary.BigEndian.PutUint16(frag[4:6], ident)

		flagsOffset := fragOffset & fragmentOffsetMask
		if moreFragments {
			flagsOffset |= moreFragmentsBit
		}
		binary.BigEndian.PutUint16(frag[6:8], flagsOffset)
		frag = append(frag, chunk...)

		fragments = append(fragments, frag)
		offset += chunkSize
	}
	return fragments, nil
}

type reassemblyKey struct {
	identification uint16
	sourceIP       [4]byte
}

type fragmentPiece struct {
	offsetUnits uint16
	payload     []byte
}

// Reassembler combines fragments, keyed by (identification, source IP),
// back into the original datagram once every offset up to the final
// fragment is present with no gaps.
type Reassembler struct {
	pieces   map[reassemblyKey][]fragmentPiece
	lastSeen map[reassemblyKey]bool
	headers  map[reassemblyKey][]byte
}

// NewReassembler builds an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		pieces:   make(map[reassemblyKey][]fragmentPiece),
		lastSeen: make(map[reassemblyKey]bool),
		headers:  make(map[reassemblyKey][]byte),
	}
}

// Process feeds one fragment (or an unfragmented packet) in. It returns
// the reassembled datagram once every fragment for its key has arrived
// with no offset gaps; otherwise it returns (nil, nil) and keeps
// waiting.
func (r *Reassembler) Process(packet []byte) ([]byte, error) {
	if len(packet) < HeaderLen {
		return nil, fmt.Errorf("ipnet: fragment too small for header: %d bytes", len(packet))
	}
	ihl := int(packet[0]&0x0F) * 4
	if ihl < HeaderLen || ihl > len(packet) {
		return nil, fmt.Errorf("ipnet: invalid IHL %d in fragment", ihl)
	}

	flagsOffset := binary.BigEndian.Uint16(packet[6:8])
	moreFragments := flagsOffset&moreFragmentsBit != 0
	fragOffset := flagsOffset & fragmentOffsetMask

	ident := binary.BigEndian.Uint16(packet[4:6])
	var srcIP [4]byte
	copy(srcIP[:], packet[12:16])
	key := reassemblyKey{identification: ident, sourceIP: srcIP}

	if !moreFragments && fragOffset == 0 {
		return append([]byte(nil), packet...), nil
	}

	if _, ok := r.headers[key]; !ok {
		r.headers[key] = append([]byte(nil), packet[:ihl]...)
	}

	payload := append([]byte(nil), packet[ihl:]...)
	r.pieces[key] = append(r.pieces[key], fragmentPiece{offsetUnits: fragOffset, payload: payload})

	if !moreFragments {
		r.lastSeen[key] = true
	}

	if !r.lastSeen[key] {
		return nil, nil
	}

	sorted := append([]fragmentPiece(nil), r.pieces[key]...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].offsetUnits < sorted[j].offsetUnits })

	expected := uint16(0)
	for _, p := range sorted {
		if p.offsetUnits != expected {
			return nil, nil // gap: still waiting on an earlier fragment
		}
		expected += uint16((len(p.payload) + 7) / 8)
	}

	reassembled := append([]byte(nil), r.headers[key]...)
	for _, p := range sorted {
		reassembled = append(reassembled, p.payload...)
	}
	binary.BigEndian.PutUint16(reassembled[2:4], uint16(len(reassembled)))
	binary.BigEndian.PutUint16(reassembled[6:8], 0)

	delete(r.pieces, key)
	delete(r.lastSeen, key)
	delete(r.headers, key)

	return reassembled, nil
}
