package mac

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/kc2tty/acoustilink/internal/audioio"
	"github.com/kc2tty/acoustilink/internal/phy"
)

// Sender drives one frame at a time through the full CSMA/CA + ARQ loop.
// It owns no network socket: every byte it moves goes through Shared's
// record/playback buffers.
type Sender struct {
	Shared  *audioio.Shared
	Encoder *phy.Encoder
	Decoder *phy.Decoder

	Rng   *rand.Rand
	Sleep func(time.Duration)
	Now   func() time.Time
	Log   *log.Logger

	// Events, if set, receives a copy of every observable transition.
	// Sends never block; a monitor that falls behind just misses some.
	Events chan<- Event
}

// NewSender builds a Sender with real-time sleeping/clock/randomness.
// Tests substitute Sleep/Now/Rng for determinism and speed.
func NewSender(shared *audioio.Shared, enc *phy.Encoder, dec *phy.Decoder) *Sender {
	return &Sender{
		Shared:  shared,
		Encoder: enc,
		Decoder: dec,
		Rng:     rand.New(rand.NewSource(1)),
		Sleep:   time.Sleep,
		Now:     time.Now,
		Log:     log.Default().WithPrefix("mac/sender"),
	}
}

// SendFrame runs frame through Sensing -> WaitingForDIFS -> Backoff ->
// Transmitting -> WaitingForAck, retrying with a growing contention
// window on every ACK timeout, until the matching ACK arrives or
// running is cleared (in which case it returns false).
func (s *Sender) SendFrame(frame phy.Frame, running *atomic.Bool) bool {
	state := Sensing
	stage := 0
	counter := 0

	s.Shared.SetAppState(audioio.Recording)

	for running.Load() {
		switch state {
		case Sensing:
			s.Sleep(s.energyDetectionPeriod())
			samples := s.Shared.PeekRecorded()
			busy, ok := phy.IsChannelBusy(samples)
			switch {
			case !ok:
				// Not enough samples yet; stay Sensing.
			case busy:
				s.Shared.ClearRecorded()
				emit(s.Events, Event{Kind: ChannelBusyDetected, Time: s.Now()})
			default:
				s.Shared.ClearRecorded()
				state = WaitingForDIFS
			}

		case WaitingForDIFS:
			s.Sleep(DIFSMS * time.Millisecond)
			samples := s.Shared.PeekRecorded()
			busy, ok := phy.IsChannelBusy(samples)
			switch {
			case !ok:
				// keep waiting
			case busy:
				s.Shared.ClearRecorded()
				state = Sensing
			default:
				s.Shared.ClearRecorded()
				cw := ContentionWindow(stage)
				counter = s.Rng.Intn(cw + 1)
				state = Backoff
			}

		case Backoff:
			if counter == 0 {
				state = Transmitting
				continue
			}
			s.Sleep(SlotTimeMS * time.Millisecond)
			samples := s.Shared.PeekRecorded()
			busy, ok := phy.IsChannelBusy(samples)
			switch {
			case !ok:
				// keep counting down next tick
			case busy:
				state = BackoffPaused
			default:
				s.Shared.ClearRecorded()
				counter--
			}

		case BackoffPaused:
			s.Sleep(DIFSMS * time.Millisecond)
			samples := s.Shared.PeekRecorded()
			busy, ok := phy.IsChannelBusy(samples)
			switch {
			case !ok:
				// keep waiting paused
			case busy:
				s.Shared.ClearRecorded()
			default:
				s.Shared.ClearRecorded()
				state = Backoff
			}

		case Transmitting:
			out := s.Encoder.EncodeFrame(frame)
			s.Shared.QueuePlayback(out)
			s.Shared.ClearRecorded()
			s.Shared.SetAppState(audioio.Playing)
			for s.Shared.GetAppState() == audioio.Playing && running.Load() {
				s.Sleep(time.Millisecond)
			}
			emit(s.Events, Event{Kind: FrameTransmitted, Sequence: frame.Sequence, Time: s.Now()})
			state = WaitingForAck

		case WaitingForAck:
			if s.waitForAck(frame.Sequence, running) {
				emit(s.Events, Event{Kind: FrameAcked, Sequence: frame.Sequence, Time: s.Now()})
				return true
			}
			stage++
			if stage > MaxBackoffStage {
				stage = MaxBackoffStage
			}
			cw := ContentionWindow(stage)
			counter = s.Rng.Intn(cw + 1)
			s.Log.Debug("ack timeout, backing off", "seq", frame.Sequence, "stage", stage, "cw", cw)
			emit(s.Events, Event{Kind: AckTimedOut, Sequence: frame.Sequence, Stage: stage, Time: s.Now()})
			state = Backoff

		case Idle:
			return false
		}
	}
	return false
}

// waitForAck polls the record buffer through the decoder for up to
// AckTimeoutMS, returning true the moment a matching Ack frame appears.
func (s *Sender) waitForAck(seq byte, running *atomic.Bool) bool {
	deadline := s.Now().Add(AckTimeoutMS * time.Millisecond)
	processed := 0
	for s.Now().Before(deadline) {
		if !running.Load() {
			return false
		}
		s.Sleep(10 * time.Millisecond)

		samples := s.Shared.PeekRecorded()
		if len(samples) <= processed {
			continue
		}
		newSamples := samples[processed:]
		processed = len(samples)

		for _, f := range s.Decoder.ProcessSamples(newSamples) {
			if f.Type == phy.Ack && f.Sequence == seq {
				return true
			}
			s.Log.Debug("unexpected frame while waiting for ack", "type", f.Type, "seq", f.Sequence, "want_seq", seq)
		}
	}
	return false
}

func (s *Sender) energyDetectionPeriod() time.Duration {
	return time.Duration(phy.EnergyDetectionSamples) * time.Millisecond
}
