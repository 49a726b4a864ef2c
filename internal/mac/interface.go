package mac

/*------------------------------------------------------------------
 *
 * Purpose:	Packet-level interface over the acoustic link: fragments
 *		outbound IP datagrams to the frame payload cap, drives
 *		each fragment through the CSMA/CA + ARQ sender, and
 *		reassembles inbound fragments back into whole datagrams.
 *
 * Description:	The link is half-duplex: one mutex serializes send and
 *		receive access to the sound card, so a SendPacket in
 *		progress is never interleaved with a receive poll fighting
 *		it for the record buffer. Acoustic MAC addresses are one
 *		byte (the destination IP's last octet); the frame format
 *		carries no address field, so on this point-to-point link
 *		the destination MAC is accepted for symmetry with the
 *		Ethernet side and logged, nothing more.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kc2tty/acoustilink/internal/audioio"
	"github.com/kc2tty/acoustilink/internal/ipnet"
	"github.com/kc2tty/acoustilink/internal/phy"
)

// AcousticInterface sends and receives whole IP datagrams over the
// acoustic MAC, hiding fragmentation and reassembly from its callers.
type AcousticInterface struct {
	Sender   *Sender
	Receiver *Receiver
	Log      *log.Logger

	mu      sync.Mutex // half-duplex: send and receive take turns
	frag    *ipnet.Fragmenter
	reasm   *ipnet.Reassembler
	packets chan []byte
	nextSeq byte
}

// NewAcousticInterface builds the packet-level interface over shared.
// The sender and receiver get independent decoders: each owns its own
// sliding-window state and they never look at the same sample stream.
func NewAcousticInterface(shared *audioio.Shared, samplesPerLevel, preambleBytes int, kind phy.LineCodingKind) (*AcousticInterface, error) {
	enc, err := phy.NewEncoder(samplesPerLevel, preambleBytes, kind)
	if err != nil {
		return nil, err
	}
	senderDec, err := phy.NewDecoder(samplesPerLevel, preambleBytes, kind, phy.MaxFrameDataSize)
	if err != nil {
		return nil, err
	}
	receiverDec, err := phy.NewDecoder(samplesPerLevel, preambleBytes, kind, phy.MaxFrameDataSize)
	if err != nil {
		return nil, err
	}
	return &AcousticInterface{
		Sender:   NewSender(shared, enc, senderDec),
		Receiver: NewReceiver(shared, enc, receiverDec),
		Log:      log.Default().WithPrefix("mac/iface"),
		frag:     ipnet.NewFragmenter(phy.MaxFrameDataSize),
		reasm:    ipnet.NewReassembler(),
		packets:  make(chan []byte, 16),
	}, nil
}

// SendPacket fragments packet to the frame payload cap and transmits
// each fragment in order, blocking until every fragment is acknowledged
// or running is cleared.
func (a *AcousticInterface) SendPacket(packet []byte, destMAC byte, running *atomic.Bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fragments, err := a.frag.Fragment(packet)
	if err != nil {
		return fmt.Errorf("mac: fragmenting %d-byte packet: %w", len(packet), err)
	}
	a.Log.Debug("sending packet", "bytes", len(packet), "fragments", len(fragments), "dest_mac", destMAC)

	for _, frag := range fragments {
		frame := phy.NewDataFrame(a.nextSeq, frag)
		a.nextSeq++
		if !a.Sender.SendFrame(frame, running) {
			return fmt.Errorf("mac: transmission canceled at seq %d", frame.Sequence)
		}
	}
	return nil
}

// ReceivePacket polls the record buffer for up to timeout and returns
// the next fully reassembled datagram, or ok=false if none completed
// before the deadline or running was cleared.
func (a *AcousticInterface) ReceivePacket(timeout time.Duration, running *atomic.Bool) (packet []byte, ok bool) {
	if a.Receiver.Shared.GetAppState() == audioio.Idle {
		a.Receiver.Shared.SetAppState(audioio.Recording)
	}

	deadline := time.Now().Add(timeout)
	for running.Load() {
		select {
		case p := <-a.packets:
			return p, true
		default:
		}
		if !time.Now().Before(deadline) {
			return nil, false
		}

		a.mu.Lock()
		a.Receiver.Poll(a.acceptFragment)
		a.mu.Unlock()

		a.Receiver.Sleep(25 * time.Millisecond)
	}
	return nil, false
}

func (a *AcousticInterface) acceptFragment(seq byte, data []byte) {
	datagram, err := a.reasm.Process(data)
	if err != nil {
		a.Log.Warn("discarding undecodable fragment", "seq", seq, "err", err)
		return
	}
	if datagram == nil {
		return
	}
	select {
	case a.packets <- datagram:
	default:
		a.Log.Warn("dropping reassembled packet, receive queue full", "bytes", len(datagram))
	}
}
