package main

/*------------------------------------------------------------------
 *
 * Purpose:	Attended-operation console: tails a node's MAC/PHY events
 *		(frames sent/received, backoff stage, channel-busy
 *		transitions) on the controlling terminal and exits on any
 *		keypress. Raw terminal mode only, no curses dependency.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/term"
	"github.com/spf13/pflag"

	"github.com/kc2tty/acoustilink/internal/audioio"
	"github.com/kc2tty/acoustilink/internal/mac"
	"github.com/kc2tty/acoustilink/internal/phy"
)

const sampleRate = 48000
const framesPerBuffer = 1024

func main() {
	role := pflag.StringP("role", "r", "receiver", "Which side to monitor: sender or receiver.")
	samplesPerLevel := pflag.IntP("samples-per-level", "s", 4, "Audio samples per line-coded level.")
	preambleBytes := pflag.IntP("preamble-bytes", "p", 4, "Preamble repetitions.")
	manchester := pflag.Bool("manchester", false, "Use Manchester line coding instead of 4B5B.")
	help := pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "acoustimon - live MAC/PHY event monitor for an acoustic node.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: acoustimon [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	logger := log.Default().WithPrefix("acoustimon")

	kind := phy.FourBFiveBCoding
	if *manchester {
		kind = phy.ManchesterCoding
	}
	enc, err := phy.NewEncoder(*samplesPerLevel, *preambleBytes, kind)
	if err != nil {
		logger.Fatal("building encoder", "err", err)
	}
	dec, err := phy.NewDecoder(*samplesPerLevel, *preambleBytes, kind, phy.MaxFrameDataSize)
	if err != nil {
		logger.Fatal("building decoder", "err", err)
	}

	shared := audioio.NewShared()
	device, err := audioio.OpenPortAudioDevice(shared, sampleRate, framesPerBuffer)
	if err != nil {
		logger.Fatal("opening audio device", "err", err)
	}
	defer device.Close()
	if err := device.Start(); err != nil {
		logger.Fatal("starting audio stream", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	running := &atomic.Bool{}
	running.Store(true)
	go func() {
		<-ctx.Done()
		running.Store(false)
	}()

	events := make(chan mac.Event, 64)

	switch *role {
	case "sender":
		sender := mac.NewSender(shared, enc, dec)
		sender.Events = events
		go runDummySender(sender, running, logger)
	case "receiver":
		receiver := mac.NewReceiver(shared, enc, dec)
		receiver.Events = events
		go receiver.Run(running, func(seq byte, data []byte) {
			logger.Debug("payload delivered to application", "seq", seq, "bytes", len(data))
		})
	default:
		fmt.Fprintf(os.Stderr, "unknown -role %q (want sender or receiver)\n", *role)
		os.Exit(1)
	}

	tailEvents(ctx, running, events, logger)
}

// runDummySender feeds an empty frame stream through the sender state
// machine purely to generate channel-sensing/backoff events for the
// monitor; a real sender is driven by cmd/acoustilink, not this tool.
func runDummySender(sender *mac.Sender, running *atomic.Bool, logger *log.Logger) {
	seq := byte(0)
	for running.Load() {
		frame := phy.NewDataFrame(seq, nil)
		if !sender.SendFrame(frame, running) {
			return
		}
		seq++
	}
	_ = logger
}

// tailEvents puts the controlling terminal into raw mode, prints each
// mac.Event as it arrives, and returns the moment any key is pressed or
// ctx is canceled.
func tailEvents(ctx context.Context, running *atomic.Bool, events <-chan mac.Event, logger *log.Logger) {
	t, err := term.Open("/dev/tty", term.RawMode)
	if err != nil {
		logger.Warn("could not open controlling terminal for raw mode, falling back to plain stdout", "err", err)
		tailEventsPlain(ctx, events)
		return
	}
	defer t.Restore()
	defer t.Close()

	fmt.Println("acoustimon: tailing MAC/PHY events, press any key to quit")

	keyPressed := make(chan struct{})
	go func() {
		buf := make([]byte, 1)
		if _, err := t.Read(buf); err == nil {
			close(keyPressed)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			running.Store(false)
			return
		case <-keyPressed:
			running.Store(false)
			return
		case ev := <-events:
			printEvent(ev)
		}
	}
}

// tailEventsPlain is the non-tty fallback, used when /dev/tty cannot be
// opened (e.g. a scripted run with no controlling terminal).
func tailEventsPlain(ctx context.Context, events <-chan mac.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			printEvent(ev)
		}
	}
}

func printEvent(ev mac.Event) {
	switch ev.Kind {
	case mac.AckTimedOut, mac.BackoffStageChanged:
		fmt.Printf("%s  %-18s seq=%d stage=%d\r\n", ev.Time.Format(time.TimeOnly), ev.Kind, ev.Sequence, ev.Stage)
	case mac.ChannelBusyDetected:
		fmt.Printf("%s  %-18s\r\n", ev.Time.Format(time.TimeOnly), ev.Kind)
	default:
		fmt.Printf("%s  %-18s seq=%d\r\n", ev.Time.Format(time.TimeOnly), ev.Kind, ev.Sequence)
	}
}
