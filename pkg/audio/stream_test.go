package audio_test

import (
	"testing"
	"time"

	"github.com/MrWong99/vadscribe/pkg/audio"
)

// rampStream returns a mono 16 kHz stream of n samples where sample i has
// value i (mod 32768).
func rampStream(n int) audio.Stream {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 32768)
	}
	return audio.Stream{Data: samplesToBytes(samples), SampleRate: 16000, Channels: 1}
}

func TestStream_Duration(t *testing.T) {
	s := rampStream(24000)
	if got := s.Duration(); got != 1500*time.Millisecond {
		t.Errorf("Duration = %v, want 1.5s", got)
	}
}

func TestStream_Slice(t *testing.T) {
	s := rampStream(16000) // 1 s

	tests := []struct {
		name           string
		startMs, endMs float64
		wantFrames     int
		wantFirst      int16
	}{
		{"middle", 100, 200, 1600, 1600},
		{"from zero", 0, 50, 800, 0},
		{"negative start clamps", -300, 10, 160, 0},
		{"end past stream clamps", 900, 1300, 1600, 14400},
		{"start past stream is empty", 1200, 1500, 0, 0},
		{"inverted is empty", 500, 400, 0, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Slice(tc.startMs, tc.endMs)
			if got.Frames() != tc.wantFrames {
				t.Fatalf("frames = %d, want %d", got.Frames(), tc.wantFrames)
			}
			if got.SampleRate != s.SampleRate || got.Channels != s.Channels {
				t.Errorf("slice changed format: %+v", got.Format())
			}
			if tc.wantFrames > 0 {
				if first := bytesToSamples(got.Data)[0]; first != tc.wantFirst {
					t.Errorf("first sample = %d, want %d", first, tc.wantFirst)
				}
			}
		})
	}
}

func TestStream_Peak(t *testing.T) {
	tests := []struct {
		name    string
		samples []int16
		want    int
	}{
		{"empty", nil, 0},
		{"silence", []int16{0, 0, 0}, 0},
		{"positive peak", []int16{10, 2500, -30}, 2500},
		{"negative peak", []int16{10, -2500, 30}, 2500},
		{"full scale negative", []int16{-32768, 32767}, 32768},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := audio.Stream{Data: samplesToBytes(tc.samples), SampleRate: 16000, Channels: 1}
			if got := s.Peak(); got != tc.want {
				t.Errorf("Peak = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRMS(t *testing.T) {
	if got := audio.RMS(nil); got != 0 {
		t.Errorf("RMS(nil) = %v, want 0", got)
	}
	if got := audio.RMS(samplesToBytes([]int16{300, -300, 300, -300})); got != 300 {
		t.Errorf("RMS = %v, want 300", got)
	}
}

func TestScratch_StageOverwrites(t *testing.T) {
	var sc audio.Scratch
	first := sc.Stage(rampStream(100))
	firstLen := len(first)
	second := sc.Stage(rampStream(10))
	if len(second) >= firstLen {
		t.Fatalf("second stage len %d should be shorter than first %d", len(second), firstLen)
	}
	decoded, err := audio.DecodeWAVBytes(second)
	if err != nil {
		t.Fatalf("DecodeWAVBytes: %v", err)
	}
	if decoded.Frames() != 10 {
		t.Errorf("decoded frames = %d, want 10", decoded.Frames())
	}
}
