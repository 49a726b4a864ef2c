package mac

import (
	"bytes"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kc2tty/acoustilink/internal/audioio"
	"github.com/kc2tty/acoustilink/internal/ipnet"
	"github.com/kc2tty/acoustilink/internal/phy"
)

// newLoopbackInterfaces wires two AcousticInterfaces together the same
// way newLoopbackPair does for a bare Sender/Receiver: each side's
// playback output becomes the other side's recorded input.
func newLoopbackInterfaces(t *testing.T) (*AcousticInterface, *AcousticInterface, *atomic.Bool) {
	t.Helper()

	aShared := audioio.NewShared()
	bShared := audioio.NewShared()

	a, err := NewAcousticInterface(aShared, 2, 2, phy.FourBFiveBCoding)
	require.NoError(t, err)
	b, err := NewAcousticInterface(bShared, 2, 2, phy.FourBFiveBCoding)
	require.NoError(t, err)
	for _, iface := range []*AcousticInterface{a, b} {
		iface.Sender.Sleep = instantSleep
		iface.Receiver.Sleep = instantSleep
	}

	running := &atomic.Bool{}
	running.Store(true)

	go func() {
		buf := make([]float32, 16)
		chunk := make([]float64, len(buf))
		for running.Load() {
			aShared.Callback(nil, buf)
			for i, v := range buf {
				chunk[i] = float64(v)
			}
			bShared.AppendRecorded(chunk)

			bShared.Callback(nil, buf)
			for i, v := range buf {
				chunk[i] = float64(v)
			}
			aShared.AppendRecorded(chunk)
		}
	}()

	return a, b, running
}

// TestInterfaceFragmentsAndReassemblesOverLoopback pushes a datagram
// larger than the frame payload cap through SendPacket and expects the
// peer's ReceivePacket to hand back the whole, byte-identical datagram.
func TestInterfaceFragmentsAndReassemblesOverLoopback(t *testing.T) {
	a, b, running := newLoopbackInterfaces(t)
	defer running.Store(false)

	payload := bytes.Repeat([]byte{0xA5}, phy.MaxFrameDataSize+100)
	h := ipnet.NewHeader(uint16(ipnet.HeaderLen+len(payload)), 7, 64, 17, [4]byte{192, 168, 1, 1}, [4]byte{192, 168, 1, 2})
	packet := append(h.ToBytes(), payload...)

	received := make(chan []byte, 1)
	go func() {
		for running.Load() {
			if p, ok := b.ReceivePacket(time.Second, running); ok {
				received <- p
				return
			}
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- a.SendPacket(packet, 2, running)
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("sender never completed")
	}

	select {
	case got := <-received:
		var wantDst, gotDst [4]byte
		copy(wantDst[:], packet[16:20])
		copy(gotDst[:], got[16:20])
		require.Equal(t, wantDst, gotDst)
		require.Equal(t, payload, got[ipnet.HeaderLen:], "payload survives fragmentation and reassembly")
	case <-time.After(10 * time.Second):
		t.Fatal("receiver never produced the reassembled datagram")
	}
}

// TestInterfaceSmallPacketPassesThroughUnfragmented: a datagram at or
// under the cap goes out as a single frame and comes back unchanged.
func TestInterfaceSmallPacketPassesThroughUnfragmented(t *testing.T) {
	a, b, running := newLoopbackInterfaces(t)
	defer running.Store(false)

	h := ipnet.NewHeader(uint16(ipnet.HeaderLen+4), 8, 64, 17, [4]byte{192, 168, 1, 1}, [4]byte{192, 168, 1, 2})
	packet := append(h.ToBytes(), 0xDE, 0xAD, 0xBE, 0xEF)

	received := make(chan []byte, 1)
	go func() {
		for running.Load() {
			if p, ok := b.ReceivePacket(time.Second, running); ok {
				received <- p
				return
			}
		}
	}()

	require.NoError(t, a.SendPacket(packet, 2, running))

	select {
	case got := <-received:
		require.Equal(t, packet, got)
	case <-time.After(10 * time.Second):
		t.Fatal("receiver never produced the datagram")
	}
}
