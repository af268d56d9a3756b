package pipeline_test

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
)

// ─────────────────────────────────────────────────────────────────────────────
// helpers
// ─────────────────────────────────────────────────────────────────────────────

// burst is a square wave of the given amplitude between two instants.
type burst struct {
	start, end float64
	amp        int16
}

// makeStream returns a mono pipeline-rate stream of the given length that is
// silent except for the bursts.
func makeStream(t *testing.T, seconds float64, bursts ...burst) audio.Stream {
	t.Helper()
	frames := int(math.Round(seconds * audio.PipelineSampleRate))
	data := make([]byte, frames*2)
	for _, b := range bursts {
		from := int(math.Round(b.start * audio.PipelineSampleRate))
		to := min(frames, int(math.Round(b.end*audio.PipelineSampleRate)))
		for i := from; i < to; i++ {
			v := b.amp
			if i%2 == 1 {
				v = -v
			}
			binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
		}
	}
	return audio.Stream{Data: data, SampleRate: audio.PipelineSampleRate, Channels: 1}
}

// segments builds a result with one untimed-word segment per text, each one
// second long and back to back.
func segments(texts ...string) *stt.Result {
	res := &stt.Result{}
	for i, txt := range texts {
		res.Segments = append(res.Segments, stt.Segment{Start: float64(i), End: float64(i + 1), Text: txt})
	}
	return res
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-6 }
