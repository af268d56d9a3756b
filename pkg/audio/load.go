package audio

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PipelineFormat is the format every stream is normalised to by [Load].
var PipelineFormat = Format{SampleRate: PipelineSampleRate, Channels: 1}

// Load decodes the .wav or .mp3 file at path and converts it to
// [PipelineFormat]. Other extensions return [ErrUnsupportedFormat].
func Load(path string) (Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stream{}, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)

	var s Stream
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		s, err = DecodeWAV(r)
	case ".mp3":
		s, err = DecodeMP3(r)
	default:
		return Stream{}, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return Stream{}, fmt.Errorf("audio: load %q: %w", path, err)
	}
	return Convert(s, PipelineFormat)
}
