package phy

/*------------------------------------------------------------------
 *
 * Purpose:	PHY decoder: a pull-driven sliding-window processor that
 *		recovers frames from an accumulating, noisy sample stream.
 *
 * Description:	Per call: append new samples, then while there are enough
 *		samples past buffer_offset, correlate a preamble-length
 *		window against the known preamble. Below threshold, advance
 *		one sample. At or above threshold, decode the fixed 40-bit
 *		header immediately following the candidate preamble; reject
 *		an impossible length cheaply, otherwise decode and CRC-check
 *		the whole frame. On success, skip past the frame; on any
 *		failure, advance one sample and keep searching. The decoder
 *		never blocks and never returns partial frames; every frame
 *		is re-acquired from scratch (no persistent sync tracking).
 *
 *------------------------------------------------------------------*/

import (
	"math"

	"github.com/charmbracelet/log"
)

// decodeStatus is the outcome of one try at the current buffer offset.
type decodeStatus int

const (
	statusSuccess decodeStatus = iota
	statusCorrelationTooLow
	statusNoEnoughSamples
	statusHeaderDecodeFailed
	statusInvalidDataLength
	statusCRCFailed
)

// CorrelationThreshold is the minimum normalized cross-correlation that
// counts as a preamble match.
const CorrelationThreshold = 0.9

// Decoder is the stateful sliding-window PHY frame recoverer.
type Decoder struct {
	code           LineCode
	preamble       []float64
	preambleEnergy float64
	maxFrameBytes  int
	sampleBuffer   []float64
	bufferOffset   int
	Log            *log.Logger
}

// NewDecoder builds a Decoder for the given line coding and preamble
// length. maxFrameBytes bounds the accepted Length field of a candidate
// header; MaxFrameDataSize is the usual choice.
func NewDecoder(samplesPerLevel, preambleBytes int, kind LineCodingKind, maxFrameBytes int) (*Decoder, error) {
	code, err := kind.New(samplesPerLevel)
	if err != nil {
		return nil, err
	}
	preamble := code.GeneratePreamble(preambleBytes)
	return &Decoder{
		code:           code,
		preamble:       preamble,
		preambleEnergy: l2Norm(preamble),
		maxFrameBytes:  maxFrameBytes,
		Log:            log.Default(),
	}, nil
}

func l2Norm(samples []float64) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum)
}

// PreambleLen is the preamble length in samples.
func (d *Decoder) PreambleLen() int {
	return len(d.preamble)
}

// Reset clears all decoder state, including the line code's.
func (d *Decoder) Reset() {
	d.sampleBuffer = nil
	d.bufferOffset = 0
	d.code.Reset()
}

// ProcessSamples appends new samples to the internal buffer and returns
// every frame successfully decoded as a result. It never blocks.
func (d *Decoder) ProcessSamples(samples []float64) []Frame {
	d.sampleBuffer = append(d.sampleBuffer, samples...)

	var decoded []Frame
	for len(d.sampleBuffer) > d.bufferOffset {
		status, frameLen, frame := d.tryDecodeAtOffset()
		switch status {
		case statusSuccess:
			decoded = append(decoded, frame)
			d.bufferOffset += frameLen
		case statusCorrelationTooLow:
			d.bufferOffset++
		case statusHeaderDecodeFailed, statusInvalidDataLength, statusCRCFailed:
			d.bufferOffset++
		default: // statusNoEnoughSamples
			goto compact
		}
	}

compact:
	keep := len(d.preamble) * 2
	if d.bufferOffset > keep {
		drain := d.bufferOffset - keep
		d.sampleBuffer = d.sampleBuffer[drain:]
		d.bufferOffset = keep
	}
	return decoded
}

// tryDecodeAtOffset attempts to lock onto a preamble and decode one
// complete frame starting at the current buffer offset.
func (d *Decoder) tryDecodeAtOffset() (decodeStatus, int, Frame) {
	remaining := d.sampleBuffer[d.bufferOffset:]

	if len(remaining) < len(d.preamble) {
		return statusNoEnoughSamples, 0, Frame{}
	}

	window := remaining[:len(d.preamble)]
	corr := d.normalizedCorrelation(window)
	if corr < CorrelationThreshold {
		return statusCorrelationTooLow, 0, Frame{}
	}

	frameSamples := remaining[len(d.preamble):]
	headerSamples := d.code.SamplesForBits(HeaderBits)
	if len(frameSamples) < headerSamples {
		return statusNoEnoughSamples, 0, Frame{}
	}

	headerBits := d.code.Decode(frameSamples[:headerSamples])
	if len(headerBits) < HeaderBits {
		d.Log.Debug("phy: header line-decode too short", "offset", d.bufferOffset)
		return statusHeaderDecodeFailed, 0, Frame{}
	}

	dataLen := int(BitsToByte(headerBits[0:8]))<<8 | int(BitsToByte(headerBits[8:16]))
	if dataLen == 0 || dataLen > d.maxFrameBytes {
		d.Log.Debug("phy: rejecting implausible length", "offset", d.bufferOffset, "length", dataLen)
		return statusInvalidDataLength, 0, Frame{}
	}

	totalBytes := 5 + dataLen
	totalBits := totalBytes * 8
	totalSamples := d.code.SamplesForBits(totalBits)
	if len(frameSamples) < totalSamples {
		return statusNoEnoughSamples, 0, Frame{}
	}

	frameBits := d.code.Decode(frameSamples[:totalSamples])
	if len(frameBits) < totalBits {
		d.Log.Debug("phy: frame line-decode too short", "offset", d.bufferOffset)
		return statusHeaderDecodeFailed, 0, Frame{}
	}

	frame, err := ParseBits(frameBits)
	if err != nil {
		d.Log.Debug("phy: frame parse/CRC failed", "offset", d.bufferOffset, "err", err)
		return statusCRCFailed, 0, Frame{}
	}

	return statusSuccess, len(d.preamble) + totalSamples, frame
}

// normalizedCorrelation computes dot(window, preamble) / (||window|| * ||preamble||).
func (d *Decoder) normalizedCorrelation(window []float64) float64 {
	if len(window) != len(d.preamble) {
		return 0
	}
	dot := 0.0
	for i, w := range window {
		dot += w * d.preamble[i]
	}
	windowEnergy := l2Norm(window)
	if windowEnergy < 1e-6 || d.preambleEnergy < 1e-6 {
		return 0
	}
	return dot / (windowEnergy * d.preambleEnergy)
}
