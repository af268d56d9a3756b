package audio

import (
	"fmt"
	"log/slog"
)

// Convert returns s in the target format. If the source already matches the
// target the stream is returned unchanged (zero allocation).
//
// Down-mixing happens before resampling so that at most one channel is
// interpolated when the target is mono.
func Convert(s Stream, target Format) (Stream, error) {
	if len(s.Data)%s.frameWidth() != 0 {
		// Trailing partial frame; drop it rather than misalign every sample.
		s.Data = s.Data[:len(s.Data)-len(s.Data)%s.frameWidth()]
	}
	if s.SampleRate == target.SampleRate && s.Channels == target.Channels {
		return s, nil
	}
	if target.Channels != 1 && target.Channels != 2 {
		return Stream{}, fmt.Errorf("audio: unsupported target channel count %d", target.Channels)
	}

	slog.Debug("audio format conversion",
		"from", formatString(s.SampleRate, s.Channels),
		"to", formatString(target.SampleRate, target.Channels),
	)

	pcm := s.Data
	channels := s.Channels

	// Step 1: channel conversion.
	switch {
	case channels == target.Channels:
	case target.Channels == 1 && channels == 2:
		pcm = StereoToMono(pcm)
	case target.Channels == 1 && channels > 2:
		pcm = DownmixToMono(pcm, channels)
	case target.Channels == 2 && channels == 1:
		pcm = MonoToStereo(pcm)
	default:
		return Stream{}, fmt.Errorf("audio: cannot convert %d channels to %d", channels, target.Channels)
	}
	channels = target.Channels

	// Step 2: resample.
	if s.SampleRate != target.SampleRate {
		if channels == 1 {
			pcm = ResampleMono16(pcm, s.SampleRate, target.SampleRate)
		} else {
			pcm = ResampleStereo16(pcm, s.SampleRate, target.SampleRate)
		}
	}

	return Stream{Data: pcm, SampleRate: target.SampleRate, Channels: channels}, nil
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
func StereoToMono(pcm []byte) []byte {
	return DownmixToMono(pcm, 2)
}

// DownmixToMono averages all channels of each interleaved frame. Uses int32
// arithmetic so the sum cannot overflow; the average always fits in int16.
func DownmixToMono(pcm []byte, channels int) []byte {
	if channels <= 1 {
		return pcm
	}
	fw := channels * bytesPerSample
	frames := len(pcm) / fw
	out := make([]byte, frames*2)
	for i := range frames {
		var sum int32
		for ch := range channels {
			idx := i*fw + ch*2
			sum += int32(int16(pcm[idx]) | int16(pcm[idx+1])<<8)
		}
		avg := sum / int32(channels)
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using linear
// interpolation. If srcRate == dstRate, the input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 1, srcRate, dstRate)
}

// ResampleStereo16 resamples 16-bit stereo PCM from srcRate to dstRate using
// linear interpolation on each channel.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	return resample16(pcm, 2, srcRate, dstRate)
}

func resample16(pcm []byte, channels, srcRate, dstRate int) []byte {
	fw := channels * bytesPerSample
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < fw {
		return pcm
	}
	srcFrames := len(pcm) / fw
	dstFrames := int(int64(srcFrames) * int64(dstRate) / int64(srcRate))
	if dstFrames == 0 {
		return nil
	}

	sample := func(frame, ch int) int16 {
		idx := frame*fw + ch*2
		return int16(pcm[idx]) | int16(pcm[idx+1])<<8
	}

	out := make([]byte, dstFrames*fw)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstFrames {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)
		next := srcIdx + 1
		if next >= srcFrames {
			next = srcIdx
		}
		for ch := range channels {
			s0, s1 := sample(srcIdx, ch), sample(next, ch)
			v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
			o := i*fw + ch*2
			out[o] = byte(v)
			out[o+1] = byte(v >> 8)
		}
	}
	return out
}

// formatString returns a human-readable string for a sample rate and channel
// count, e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
