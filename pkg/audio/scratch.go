package audio

// Scratch is a reusable single-slot buffer holding the WAV encoding of the
// clip currently being recognised. Every call to [Scratch.Stage] overwrites
// the previous contents, so the returned bytes are only valid until the next
// call. A Scratch must not be shared between goroutines; give each
// concurrent worker its own.
type Scratch struct {
	buf []byte
}

// Stage encodes clip into the scratch buffer and returns the encoded bytes.
func (s *Scratch) Stage(clip Stream) []byte {
	s.buf = AppendWAV(s.buf[:0], clip)
	return s.buf
}

