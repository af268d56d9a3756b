package pipeline

import "slices"

// Transcript is the ordered sequence of sentence units of one file. Units
// are only ever appended, in span order.
type Transcript struct {
	units []SentenceUnit
}

// Append adds u at the end of the transcript.
func (t *Transcript) Append(u SentenceUnit) {
	t.units = append(t.units, u)
}

// Units returns a copy of the units in insertion order.
func (t *Transcript) Units() []SentenceUnit {
	return slices.Clone(t.units)
}

// Len returns the number of units.
func (t *Transcript) Len() int { return len(t.units) }

// DecodingContext carries the decoder prompt from one span to the next. It
// holds the text of the most recently accepted sentence of the current file.
type DecodingContext struct {
	prompt string
}

// Prompt returns the current prompt. It is empty before the first accepted
// sentence.
func (c *DecodingContext) Prompt() string { return c.prompt }

// Update replaces the prompt with text.
func (c *DecodingContext) Update(text string) { c.prompt = text }
