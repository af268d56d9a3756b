package audio

import (
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// DecodeMP3 decodes an MPEG-1/2 Layer III stream. go-mp3 always produces
// 16-bit little-endian stereo at the file's native sample rate.
func DecodeMP3(r io.Reader) (Stream, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Stream{}, fmt.Errorf("%w: mp3: %v", ErrUnsupportedFormat, err)
	}
	var data []byte
	if n := dec.Length(); n > 0 {
		data = make([]byte, 0, n)
	}
	buf := make([]byte, 32*1024)
	for {
		n, err := dec.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Stream{}, fmt.Errorf("audio: decode mp3: %w", err)
		}
	}
	return Stream{Data: data, SampleRate: dec.SampleRate(), Channels: 2}, nil
}
