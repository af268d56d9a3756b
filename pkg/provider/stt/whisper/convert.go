package whisper

import (
	"encoding/binary"

	"github.com/MrWong99/vadscribe/pkg/audio"
)

// int16Scale maps the int16 range onto [-1.0, 1.0).
const int16Scale = 1.0 / 32768.0

// clipSamples converts a pipeline-format clip (16 kHz mono PCM16) into the
// float32 samples whisper.cpp consumes. A trailing odd byte is ignored.
func clipSamples(clip audio.Stream) []float32 {
	pcm := clip.Data
	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) * int16Scale
	}
	return out
}
