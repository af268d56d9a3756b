package audio_test

import (
	"encoding/binary"
	"testing"

	"github.com/MrWong99/vadscribe/pkg/audio"
)

// samplesToBytes converts a slice of int16 samples to little-endian byte representation.
func samplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// bytesToSamples converts a little-endian byte slice to int16 samples.
func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}

func assertSamples(t *testing.T, got, want []int16) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMonoToStereo(t *testing.T) {
	stereo := audio.MonoToStereo(samplesToBytes([]int16{100, 200, 300}))
	assertSamples(t, bytesToSamples(stereo), []int16{100, 100, 200, 200, 300, 300})
}

func TestStereoToMono(t *testing.T) {
	// Two stereo frames: L=100,R=200 and L=-100,R=-200
	mono := audio.StereoToMono(samplesToBytes([]int16{100, 200, -100, -200}))
	assertSamples(t, bytesToSamples(mono), []int16{150, -150})
}

func TestStereoToMono_NoOverflow(t *testing.T) {
	mono := audio.StereoToMono(samplesToBytes([]int16{32767, 32767, -32768, -32768}))
	assertSamples(t, bytesToSamples(mono), []int16{32767, -32768})
}

func TestDownmixToMono_FourChannels(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300, 400, -4, -4, -4, -4})
	mono := audio.DownmixToMono(pcm, 4)
	assertSamples(t, bytesToSamples(mono), []int16{250, -4})
}

func TestResampleMono16_SameRate(t *testing.T) {
	pcm := samplesToBytes([]int16{100, 200, 300})
	out := audio.ResampleMono16(pcm, 48000, 48000)
	if len(out) != len(pcm) {
		t.Fatalf("length mismatch: got %d, want %d", len(out), len(pcm))
	}
}

func TestResampleMono16_Upsample(t *testing.T) {
	// 2 samples at 16kHz → 6 samples at 48kHz (3x)
	out := audio.ResampleMono16(samplesToBytes([]int16{1000, 2000}), 16000, 48000)
	got := bytesToSamples(out)
	if len(got) != 6 {
		t.Fatalf("expected 6 samples, got %d", len(got))
	}
	if got[0] != 1000 {
		t.Errorf("first sample: got %d, want 1000", got[0])
	}
	if last := got[len(got)-1]; last < 1800 || last > 2200 {
		t.Errorf("last sample: got %d, want close to 2000", last)
	}
}

func TestResampleMono16_Downsample(t *testing.T) {
	// 6 samples at 48kHz → 2 samples at 16kHz (1/3x)
	out := audio.ResampleMono16(samplesToBytes([]int16{100, 200, 300, 400, 500, 600}), 48000, 16000)
	if got := bytesToSamples(out); len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
}

func TestResampleStereo16(t *testing.T) {
	// 2 stereo frames at 16kHz → 6 stereo frames (12 samples) at 48kHz
	out := audio.ResampleStereo16(samplesToBytes([]int16{100, 200, 300, 400}), 16000, 48000)
	if got := bytesToSamples(out); len(got) != 12 {
		t.Fatalf("expected 12 samples, got %d", len(got))
	}
}

func TestResampleMono16_ZeroRate(t *testing.T) {
	pcm := samplesToBytes([]int16{1, 2, 3})
	if out := audio.ResampleMono16(pcm, 0, 16000); len(out) != len(pcm) {
		t.Errorf("zero source rate should return input unchanged, got %d bytes", len(out))
	}
}

func TestConvert_NoOp(t *testing.T) {
	in := audio.Stream{Data: samplesToBytes([]int16{100, 200}), SampleRate: 16000, Channels: 1}
	out, err := audio.Convert(in, audio.PipelineFormat)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if &out.Data[0] != &in.Data[0] {
		t.Error("expected matching format to return the same backing array")
	}
}

func TestConvert_StereoToPipelineFormat(t *testing.T) {
	// 480 stereo frames at 48 kHz (10 ms) → 160 mono frames at 16 kHz.
	samples := make([]int16, 960)
	for i := range samples {
		samples[i] = 1000
	}
	in := audio.Stream{Data: samplesToBytes(samples), SampleRate: 48000, Channels: 2}

	out, err := audio.Convert(in, audio.PipelineFormat)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if out.SampleRate != 16000 || out.Channels != 1 {
		t.Fatalf("format = %d Hz / %d ch, want 16000 Hz / 1 ch", out.SampleRate, out.Channels)
	}
	if got := out.Frames(); got != 160 {
		t.Errorf("frames = %d, want 160", got)
	}
	for i, s := range bytesToSamples(out.Data) {
		if s != 1000 {
			t.Fatalf("sample %d = %d, want 1000", i, s)
		}
	}
}

func TestConvert_DropsTrailingPartialFrame(t *testing.T) {
	in := audio.Stream{Data: append(samplesToBytes([]int16{5, 6}), 0x01), SampleRate: 16000, Channels: 2}
	out, err := audio.Convert(in, audio.PipelineFormat)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	assertSamples(t, bytesToSamples(out.Data), []int16{5})
}

func TestConvert_UnsupportedTarget(t *testing.T) {
	in := audio.Stream{Data: samplesToBytes([]int16{1}), SampleRate: 16000, Channels: 1}
	if _, err := audio.Convert(in, audio.Format{SampleRate: 16000, Channels: 6}); err == nil {
		t.Fatal("expected error for 6-channel target")
	}
}
