// Package stim provides stimulus sources that feed control words to a PWM
// generator, one per tick: a constant word, a parsed script, and an
// interactive queue for the scope frontends.
package stim

// Source produces one control bus value and reset flag per tick.
// ok is false once a finite program has run out of steps.
type Source interface {
	Next() (raw uint8, reset bool, ok bool)
}

// Hold repeats a single control word forever, modelling a bus held constant.
type Hold struct {
	word uint8
}

// NewHold creates a source that issues word on every tick.
func NewHold(word uint8) *Hold {
	return &Hold{word: word}
}

func (h *Hold) Next() (uint8, bool, bool) {
	return h.word, false, true
}
