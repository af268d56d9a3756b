package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrUnsupportedFormat is returned when a container or sample encoding
// cannot be decoded into 16-bit PCM.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

const (
	wavHeaderSize = 44

	wavFormatPCM        = 0x0001
	wavFormatExtensible = 0xFFFE
)

// EncodeWAV wraps s in a standard RIFF/WAV container.
func EncodeWAV(s Stream) []byte {
	return AppendWAV(nil, s)
}

// AppendWAV appends the WAV encoding of s to dst and returns the extended
// buffer. Passing dst[:0] of a previously returned buffer reuses its memory.
func AppendWAV(dst []byte, s Stream) []byte {
	channels := s.Channels
	if channels <= 0 {
		channels = 1
	}
	byteRate := s.SampleRate * channels * bytesPerSample
	blockAlign := channels * bytesPerSample
	dataSize := len(s.Data)

	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+dataSize))
	copy(hdr[8:12], "WAVE")

	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(s.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)

	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(dataSize))

	dst = append(dst, hdr[:]...)
	return append(dst, s.Data...)
}

// DecodeWAV parses a RIFF/WAV container holding 16-bit integer PCM. Unknown
// chunks (LIST, fact, cue, ...) are skipped. WAVE_FORMAT_EXTENSIBLE files
// are accepted when their sub-format is PCM.
func DecodeWAV(r io.Reader) (Stream, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Stream{}, fmt.Errorf("audio: read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Stream{}, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedFormat)
	}

	var (
		format  Format
		haveFmt bool
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Stream{}, fmt.Errorf("%w: missing data chunk", ErrUnsupportedFormat)
			}
			return Stream{}, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			f, err := readFmtChunk(r, size)
			if err != nil {
				return Stream{}, err
			}
			format, haveFmt = f, true
		case "data":
			if !haveFmt {
				return Stream{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedFormat)
			}
			// Streaming writers (ffmpeg to a pipe) leave the size at 0 or
			// 0xFFFFFFFF; read to EOF in that case.
			var data []byte
			var err error
			if size == 0 || size == 0xFFFFFFFF {
				data, err = io.ReadAll(r)
			} else {
				data = make([]byte, size)
				var n int
				n, err = io.ReadFull(r, data)
				if errors.Is(err, io.ErrUnexpectedEOF) {
					data, err = data[:n], nil
				}
			}
			if err != nil {
				return Stream{}, fmt.Errorf("audio: read data chunk: %w", err)
			}
			fw := format.Channels * bytesPerSample
			data = data[:len(data)-len(data)%fw]
			return Stream{Data: data, SampleRate: format.SampleRate, Channels: format.Channels}, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return Stream{}, fmt.Errorf("audio: skip %q chunk: %w", id, err)
			}
		}
	}
}

func readFmtChunk(r io.Reader, size int64) (Format, error) {
	if size < 16 {
		return Format{}, fmt.Errorf("%w: fmt chunk too short (%d bytes)", ErrUnsupportedFormat, size)
	}
	buf := make([]byte, size+size%2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Format{}, fmt.Errorf("audio: read fmt chunk: %w", err)
	}
	tag := binary.LittleEndian.Uint16(buf[0:2])
	channels := int(binary.LittleEndian.Uint16(buf[2:4]))
	rate := int(binary.LittleEndian.Uint32(buf[4:8]))
	bits := int(binary.LittleEndian.Uint16(buf[14:16]))

	if tag == wavFormatExtensible {
		// cbSize(2) validBits(2) channelMask(4) subFormat GUID(16); the
		// first two GUID bytes carry the format tag.
		if size < 40 {
			return Format{}, fmt.Errorf("%w: truncated extensible fmt chunk", ErrUnsupportedFormat)
		}
		tag = binary.LittleEndian.Uint16(buf[24:26])
	}
	if tag != wavFormatPCM {
		return Format{}, fmt.Errorf("%w: wav format tag 0x%04x", ErrUnsupportedFormat, tag)
	}
	if bits != bitsPerSample {
		return Format{}, fmt.Errorf("%w: %d-bit samples (only 16-bit PCM is supported)", ErrUnsupportedFormat, bits)
	}
	if channels <= 0 || rate <= 0 {
		return Format{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, channels, rate)
	}
	return Format{SampleRate: rate, Channels: channels}, nil
}

// DecodeWAVBytes is a convenience wrapper around [DecodeWAV].
func DecodeWAVBytes(b []byte) (Stream, error) {
	return DecodeWAV(bytes.NewReader(b))
}
