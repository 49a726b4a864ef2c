package mac

import (
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kc2tty/acoustilink/internal/audioio"
	"github.com/kc2tty/acoustilink/internal/phy"
)

// Receiver continuously records, decodes Data frames, delivers each
// unique sequence exactly once, and ACKs every occurrence (including
// duplicates, so a sender whose previous ACK was lost still unblocks).
type Receiver struct {
	Shared  *audioio.Shared
	Encoder *phy.Encoder
	Decoder *phy.Decoder

	Sleep func(time.Duration)
	Log   *log.Logger

	// Events, if set, receives a copy of every observable transition.
	Events chan<- Event

	delivered map[byte]struct{}
}

// NewReceiver builds a Receiver with real-time sleeping.
func NewReceiver(shared *audioio.Shared, enc *phy.Encoder, dec *phy.Decoder) *Receiver {
	return &Receiver{
		Shared:    shared,
		Encoder:   enc,
		Decoder:   dec,
		Sleep:     time.Sleep,
		Log:       log.Default().WithPrefix("mac/receiver"),
		delivered: make(map[byte]struct{}),
	}
}

// Run loops until running is cleared, invoking deliver once per
// distinct sequence number the moment its Data frame is first decoded.
func (r *Receiver) Run(running *atomic.Bool, deliver func(seq byte, data []byte)) {
	r.Shared.SetAppState(audioio.Recording)

	for running.Load() {
		r.Sleep(25 * time.Millisecond)
		r.Poll(deliver)
	}
}

// Poll makes one pass over whatever has been recorded since the last
// call: drain, decode, deliver/ACK. It returns immediately when too few
// samples have accumulated to be worth a decoder run.
func (r *Receiver) Poll(deliver func(seq byte, data []byte)) {
	if r.Shared.RecordedLen() <= 50 {
		return
	}
	samples := r.Shared.DrainRecorded()

	for _, frame := range r.Decoder.ProcessSamples(samples) {
		if frame.Type != phy.Data {
			continue
		}
		r.handleDataFrame(frame, deliver)
	}
}

func (r *Receiver) handleDataFrame(frame phy.Frame, deliver func(seq byte, data []byte)) {
	if _, seen := r.delivered[frame.Sequence]; !seen {
		r.delivered[frame.Sequence] = struct{}{}
		deliver(frame.Sequence, frame.Data)
		r.Log.Debug("delivered data frame", "seq", frame.Sequence)
		emit(r.Events, Event{Kind: FrameDelivered, Sequence: frame.Sequence, Time: time.Now()})
	} else {
		r.Log.Debug("duplicate data frame, re-acking", "seq", frame.Sequence)
		emit(r.Events, Event{Kind: DuplicateFrame, Sequence: frame.Sequence, Time: time.Now()})
	}

	ack := phy.NewAckFrame(frame.Sequence)
	out := r.Encoder.EncodeFrame(ack)
	r.Shared.QueuePlayback(out)
	r.Shared.SetAppState(audioio.Playing)
	for r.Shared.GetAppState() == audioio.Playing {
		r.Sleep(time.Millisecond)
	}
	r.Shared.ClearRecorded()
}
