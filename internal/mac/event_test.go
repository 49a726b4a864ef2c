package mac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kc2tty/acoustilink/internal/phy"
)

func TestSenderReceiverEmitEventsOverLoopback(t *testing.T) {
	sender, receiver, running := newLoopbackPair(t)
	defer running.Store(false)

	senderEvents := make(chan Event, 16)
	receiverEvents := make(chan Event, 16)
	sender.Events = senderEvents
	receiver.Events = receiverEvents

	go receiver.Run(running, func(seq byte, data []byte) {})

	done := make(chan bool, 1)
	go func() {
		done <- sender.SendFrame(phy.NewDataFrame(0, []byte{0xAA}), running)
	}()

	select {
	case ok := <-done:
		require.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("sender never completed the stop-and-wait exchange")
	}

	requireEventKind(t, senderEvents, FrameTransmitted)
	requireEventKind(t, senderEvents, FrameAcked)
	requireEventKind(t, receiverEvents, FrameDelivered)
}

func requireEventKind(t *testing.T, events chan Event, want EventKind) {
	t.Helper()
	for {
		select {
		case ev := <-events:
			if ev.Kind == want {
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("never observed event kind %s", want)
		}
	}
}

func TestEmitNeverBlocksOnFullOrNilChannel(t *testing.T) {
	emit(nil, Event{Kind: FrameTransmitted})

	full := make(chan Event, 1)
	full <- Event{Kind: FrameAcked}
	emit(full, Event{Kind: FrameTransmitted})
	require.Len(t, full, 1)
}
