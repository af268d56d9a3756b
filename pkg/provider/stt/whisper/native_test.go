package whisper_test

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/MrWong99/vadscribe/pkg/audio"
	"github.com/MrWong99/vadscribe/pkg/provider/stt"
	"github.com/MrWong99/vadscribe/pkg/provider/stt/whisper"
)

// testModelPath returns the path to a whisper model for integration tests.
// It reads from the WHISPER_MODEL_PATH environment variable. If unset the
// test is skipped.
func testModelPath(t *testing.T) string {
	t.Helper()
	p := os.Getenv("WHISPER_MODEL_PATH")
	if p == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	return p
}

func TestNewNative_EmptyPath_ReturnsError(t *testing.T) {
	if _, err := whisper.NewNative(""); err == nil {
		t.Fatal("expected error for empty model path, got nil")
	}
}

func TestNewNative_InvalidPath_ReturnsError(t *testing.T) {
	if _, err := whisper.NewNative("/nonexistent/path/to/model.bin"); err == nil {
		t.Fatal("expected error for invalid model path, got nil")
	}
}

func TestNativeRecognize_Tone(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath, whisper.WithNativeThreads(2), whisper.WithNativeWordTimestamps(true))
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	// One second of a 440 Hz tone at 48 kHz stereo exercises the conversion
	// to the pipeline format.
	samples := make([]int16, 2*48000)
	for i := 0; i < 48000; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*440*float64(i)/48000))
		samples[2*i], samples[2*i+1] = v, v
	}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[2*i], pcm[2*i+1] = byte(s), byte(s>>8)
	}
	wav := audio.EncodeWAV(audio.Stream{Data: pcm, SampleRate: 48000, Channels: 2})

	res, err := p.Recognize(context.Background(), wav, stt.Options{Language: "en", BeamSize: 5})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if err := stt.Validate(res); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestNativeRecognize_RejectsNonWAV(t *testing.T) {
	modelPath := testModelPath(t)
	p, err := whisper.NewNative(modelPath)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	if _, err := p.Recognize(context.Background(), []byte("not a wav"), stt.Options{}); err == nil {
		t.Fatal("expected error for non-WAV clip")
	}
}
