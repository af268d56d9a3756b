// Package audio holds the decoded PCM representation used throughout the
// transcription pipeline together with the codecs and conversions needed to
// get there: WAV and MP3 decoding, down-mixing, resampling, millisecond
// slicing and loudness measurement.
//
// All sample data is 16-bit signed little-endian PCM. After [Load] a stream
// is always mono at [PipelineSampleRate].
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// PipelineSampleRate is the rate every stream is converted to before VAD
	// and recognition. Whisper-family engines are trained on 16 kHz audio.
	PipelineSampleRate = 16000

	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Stream is a fully decoded PCM buffer. The zero value is an empty stream.
type Stream struct {
	// Data is interleaved 16-bit little-endian PCM.
	Data []byte

	// SampleRate in Hz.
	SampleRate int

	// Channels: 1 for mono, 2 for stereo.
	Channels int
}

// Format returns the stream's sample rate and channel count.
func (s Stream) Format() Format {
	return Format{SampleRate: s.SampleRate, Channels: s.Channels}
}

// frameWidth is the number of bytes per multi-channel sample frame.
func (s Stream) frameWidth() int {
	ch := s.Channels
	if ch <= 0 {
		ch = 1
	}
	return ch * bytesPerSample
}

// Frames returns the number of complete sample frames in the stream.
func (s Stream) Frames() int {
	return len(s.Data) / s.frameWidth()
}

// Duration returns the playback length of the stream.
func (s Stream) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(int64(s.Frames()) * int64(time.Second) / int64(s.SampleRate))
}

// Slice returns the part of the stream between startMs and endMs. Bounds
// are clamped to the stream: a range that runs past the end is cut short and
// a range that starts past the end yields an empty stream. The returned
// stream shares memory with s.
func (s Stream) Slice(startMs, endMs float64) Stream {
	out := Stream{SampleRate: s.SampleRate, Channels: s.Channels}
	if s.SampleRate <= 0 {
		return out
	}
	total := s.Frames()
	from := msToFrame(startMs, s.SampleRate, total)
	to := msToFrame(endMs, s.SampleRate, total)
	if to <= from {
		out.Data = s.Data[:0:0]
		return out
	}
	fw := s.frameWidth()
	out.Data = s.Data[from*fw : to*fw]
	return out
}

func msToFrame(ms float64, rate, total int) int {
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	f := int(math.Round(ms * float64(rate) / 1000))
	if f > total {
		return total
	}
	return f
}

// Peak returns the largest absolute sample value in the stream, in 16-bit
// PCM units (0–32 768). An empty stream has peak 0.
func (s Stream) Peak() int {
	peak := 0
	for i := 0; i+1 < len(s.Data); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(s.Data[i : i+2])))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// RMS returns the root-mean-square energy of a 16-bit signed little-endian
// PCM buffer. Returns 0 for buffers shorter than one sample.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2])))
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}
