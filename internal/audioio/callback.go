package audioio

/*------------------------------------------------------------------
 *
 * Purpose:	The real-time audio callback contract: one call per audio
 *		period, fed input samples and asked to fill output samples.
 *
 *------------------------------------------------------------------*/

// Callback runs once per audio period. When AppState is Recording, in
// is appended to the record buffer and out is left silent. When
// AppState is Playing, out is filled from the playback buffer; once the
// buffer drains, AppState transitions back to Recording so the control
// thread's spin-wait (see internal/mac) observes playback completion.
//
// This never allocates beyond what NextPlaybackChunk already returns,
// and never blocks: it is meant to run on an audio driver's real-time
// thread, where blocking risks an audible dropout.
func (s *Shared) Callback(in []float64, out []float32) {
	switch s.GetAppState() {
	case Recording:
		if len(in) > 0 {
			s.AppendRecorded(in)
		}
		for i := range out {
			out[i] = 0
		}
	case Playing:
		if s.playOut(out) {
			s.SetAppState(Recording)
		}
	case RecordingAndPlaying:
		if len(in) > 0 {
			s.AppendRecorded(in)
		}
		if s.playOut(out) {
			s.SetAppState(Recording)
		}
	default: // Idle
		for i := range out {
			out[i] = 0
		}
	}
}

// playOut fills out from the playback buffer, zero-padding the tail, and
// reports whether the buffer drained before filling this period.
func (s *Shared) playOut(out []float32) (drained bool) {
	chunk, remaining := s.NextPlaybackChunk(len(out))
	i := 0
	for ; i < len(chunk); i++ {
		out[i] = float32(chunk[i])
	}
	for ; i < len(out); i++ {
		out[i] = 0
	}
	return remaining == 0 && len(chunk) < len(out)
}
