package phy

/*------------------------------------------------------------------
 *
 * Purpose:	PHY encoder: serialize a frame, line-code it, and prepend
 *		the synchronization preamble.
 *
 *------------------------------------------------------------------*/

// Encoder turns Frames into audio samples ready for the playback buffer.
type Encoder struct {
	code     LineCode
	preamble []float64
}

// NewEncoder builds an Encoder for the given line coding and preamble
// length (in repetitions of the 8-bit preamble pattern).
func NewEncoder(samplesPerLevel, preambleBytes int, kind LineCodingKind) (*Encoder, error) {
	code, err := kind.New(samplesPerLevel)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		code:     code,
		preamble: code.GeneratePreamble(preambleBytes),
	}, nil
}

// PreambleLen is the preamble length in samples.
func (e *Encoder) PreambleLen() int {
	return len(e.preamble)
}

// EncodeFrame returns [preamble][line-coded frame] for a single frame.
func (e *Encoder) EncodeFrame(f Frame) []float64 {
	frameSamples := e.code.Encode(f.SerializeBits())
	out := make([]float64, 0, len(e.preamble)+len(frameSamples))
	out = append(out, e.preamble...)
	out = append(out, frameSamples...)
	return out
}

// EncodeFrames concatenates several frames with interFrameGapSamples of
// silence inserted between (but not after) each one.
func (e *Encoder) EncodeFrames(frames []Frame, interFrameGapSamples int) []float64 {
	var out []float64
	for i, f := range frames {
		out = append(out, e.EncodeFrame(f)...)
		if i < len(frames)-1 {
			out = append(out, make([]float64, interFrameGapSamples)...)
		}
	}
	return out
}
