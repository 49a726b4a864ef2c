package audioio

/*------------------------------------------------------------------
 *
 * Purpose:	Diagnostic WAV dump of a captured/played sample buffer, for
 *		after-the-fact inspection of what the channel actually
 *		carried.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/lestrrat-go/strftime"
)

// DumpWAVPattern is the strftime pattern used for dump file names.
const DumpWAVPattern = "acoustilink-%Y%m%d-%H%M%S.wav"

// DumpWAV writes samples (assumed in [-1, 1]) as 16-bit mono PCM to dir,
// naming the file from DumpWAVPattern evaluated at the given time. It
// returns the path written.
func DumpWAV(dir string, at time.Time, sampleRate int, samples []float64) (string, error) {
	pattern, err := strftime.New(DumpWAVPattern)
	if err != nil {
		return "", fmt.Errorf("audioio: bad wav dump pattern: %w", err)
	}
	path := dir + string(os.PathSeparator) + pattern.FormatString(at)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("audioio: create wav dump: %w", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	defer enc.Close()

	ints := make([]int, len(samples))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		ints[i] = int(s * 32767)
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return "", fmt.Errorf("audioio: write wav dump: %w", err)
	}
	return path, nil
}
