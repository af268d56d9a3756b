package pipeline

import "github.com/MrWong99/vadscribe/pkg/audio"

// DefaultSilenceThreshold is the default minimum peak amplitude, in 16-bit
// PCM units, of a clip worth recognizing.
const DefaultSilenceThreshold = 2000

// LoudnessGate rejects clips whose peak amplitude stays below Threshold.
// Clips whose peak equals the threshold pass.
type LoudnessGate struct {
	Threshold int
}

// Accept reports whether clip is loud enough to recognize. An empty clip has
// peak zero and is accepted only by a gate with a non-positive threshold.
func (g LoudnessGate) Accept(clip audio.Stream) bool {
	return clip.Peak() >= g.Threshold
}
