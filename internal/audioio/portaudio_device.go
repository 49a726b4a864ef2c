package audioio

/*------------------------------------------------------------------
 *
 * Purpose:	Sound-card adapter: wires a real duplex PortAudio stream's
 *		input/output buffers through Shared.Callback.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice owns one duplex PortAudio stream bound to a Shared.
type PortAudioDevice struct {
	shared *Shared
	stream *portaudio.Stream
	log    *log.Logger
}

// OpenPortAudioDevice opens the default input/output devices at
// sampleRate with framesPerBuffer samples per period, mono in and out.
func OpenPortAudioDevice(shared *Shared, sampleRate float64, framesPerBuffer int) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audioio: portaudio init: %w", err)
	}

	d := &PortAudioDevice{shared: shared, log: log.Default().WithPrefix("audioio")}

	in := make([]float32, framesPerBuffer)
	out := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 1, sampleRate, framesPerBuffer, func(inBuf, outBuf []float32) {
		copy(in, inBuf)
		ins := make([]float64, len(in))
		for i, v := range in {
			ins[i] = float64(v)
		}
		shared.Callback(ins, out)
		copy(outBuf, out)
	})
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audioio: open stream: %w", err)
	}
	d.stream = stream
	return d, nil
}

// Start begins streaming.
func (d *PortAudioDevice) Start() error {
	if err := d.stream.Start(); err != nil {
		return fmt.Errorf("audioio: start stream: %w", err)
	}
	d.log.Debug("stream started")
	return nil
}

// Close stops the stream and releases the underlying PortAudio handle.
func (d *PortAudioDevice) Close() error {
	if err := d.stream.Close(); err != nil {
		d.log.Warn("closing stream", "err", err)
	}
	return portaudio.Terminate()
}
