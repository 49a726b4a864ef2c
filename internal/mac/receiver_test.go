package mac

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kc2tty/acoustilink/internal/audioio"
	"github.com/kc2tty/acoustilink/internal/phy"
)

func instantSleep(time.Duration) {}

// runReceiverUntil runs the receiver loop on its own goroutine, draining
// playback it produces into a bit bucket (as if ACKs vanished into the
// ether) so it never blocks on app-state transitions, and returns the
// running flag; clearing it terminates both goroutines.
func runReceiverUntil(t *testing.T, r *Receiver, got chan<- struct {
	seq  byte
	data []byte
}) *atomic.Bool {
	t.Helper()
	running := &atomic.Bool{}
	running.Store(true)

	go func() {
		for running.Load() {
			if r.Shared.GetAppState() == audioio.Playing {
				r.Shared.NextPlaybackChunk(1 << 20)
				r.Shared.SetAppState(audioio.Recording)
			}
			time.Sleep(time.Microsecond)
		}
	}()

	go func() {
		r.Run(running, func(seq byte, data []byte) {
			got <- struct {
				seq  byte
				data []byte
			}{seq, data}
		})
	}()
	return running
}

func TestReceiverDeliversOncePerSequenceButAcksDuplicates(t *testing.T) {
	shared := audioio.NewShared()
	enc, err := phy.NewEncoder(2, 2, phy.FourBFiveBCoding)
	require.NoError(t, err)
	dec, err := phy.NewDecoder(2, 2, phy.FourBFiveBCoding, phy.MaxFrameDataSize)
	require.NoError(t, err)
	r := NewReceiver(shared, enc, dec)
	r.Sleep = instantSleep
	events := make(chan Event, 4)
	r.Events = events

	frame := phy.NewDataFrame(5, []byte{0x01, 0x02})
	samples := enc.EncodeFrame(frame)
	duplicated := append(append([]float64(nil), samples...), samples...)
	shared.AppendRecorded(duplicated)

	deliveries := make(chan struct {
		seq  byte
		data []byte
	}, 4)
	running := runReceiverUntil(t, r, deliveries)
	defer running.Store(false)

	select {
	case d := <-deliveries:
		require.Equal(t, byte(5), d.seq)
		require.Equal(t, []byte{0x01, 0x02}, d.data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	select {
	case <-deliveries:
		t.Fatal("duplicate sequence must not be delivered twice")
	case <-time.After(50 * time.Millisecond):
	}

	// The second copy takes the duplicate branch, which re-ACKs it.
	requireEventKind(t, events, DuplicateFrame)
}
