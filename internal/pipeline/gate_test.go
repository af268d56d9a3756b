package pipeline_test

import (
	"testing"

	"github.com/MrWong99/vadscribe/internal/pipeline"
	"github.com/MrWong99/vadscribe/pkg/audio"
)

func TestLoudnessGate_Accept(t *testing.T) {
	tests := []struct {
		name      string
		amp       int16
		threshold int
		want      bool
	}{
		{name: "loud", amp: 5000, threshold: 2000, want: true},
		{name: "quiet", amp: 1999, threshold: 2000, want: false},
		{name: "equal passes", amp: 2000, threshold: 2000, want: true},
		{name: "zero threshold", amp: 0, threshold: 0, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clip := makeStream(t, 0.1, burst{0, 0.1, tc.amp})
			g := pipeline.LoudnessGate{Threshold: tc.threshold}
			if got := g.Accept(clip); got != tc.want {
				t.Errorf("Accept (peak %d, threshold %d) = %v, want %v", clip.Peak(), tc.threshold, got, tc.want)
			}
		})
	}
}

func TestLoudnessGate_Monotonic(t *testing.T) {
	clip := makeStream(t, 0.2, burst{0.05, 0.1, 3000})
	prev := true
	for th := 0; th <= 6000; th += 250 {
		got := pipeline.LoudnessGate{Threshold: th}.Accept(clip)
		if got && !prev {
			t.Fatalf("threshold %d accepts after a lower threshold rejected", th)
		}
		prev = got
	}
}

func TestLoudnessGate_EmptyClip(t *testing.T) {
	g := pipeline.LoudnessGate{Threshold: pipeline.DefaultSilenceThreshold}
	if g.Accept(audio.Stream{SampleRate: audio.PipelineSampleRate, Channels: 1}) {
		t.Error("empty clip accepted by default gate")
	}
}
