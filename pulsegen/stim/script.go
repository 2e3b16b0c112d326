package stim

import (
	"bufio"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"

	"github.com/halvard/go-pulsegen/pulsegen/pwm"
)

// step is one tick of a parsed script.
type step struct {
	word  uint8
	reset bool
	mark  string // logged when the step is issued, empty for most steps
}

// Script is a finite stimulus program parsed from a small line-oriented
// text format. Each line is one command:
//
//	word <value>          issue a raw control byte (decimal, 0x.., 0b..)
//	set <ch> on|off <duty> issue a word built from fields
//	hold <n>              repeat the previous word for n more ticks
//	reset [n]             assert reset for n ticks (default 1)
//	mark "<label>"        log a marker when this point is reached
//	# comment
//
// Every command expands to exactly one (word, reset) pair per tick.
type Script struct {
	steps  []step
	pos    int
	logger *slog.Logger
}

// ParseScript reads a script from r. Parse errors report the offending line
// number.
func ParseScript(r io.Reader) (*Script, error) {
	s := &Script{logger: slog.Default()}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	haveWord := false
	var lastWord uint8

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tokens, err := shlex.Split(line)
		if err != nil {
			return nil, errors.Wrapf(err, "script line %d", lineNo)
		}
		if len(tokens) == 0 {
			continue
		}

		switch tokens[0] {
		case "word":
			if len(tokens) != 2 {
				return nil, errors.Errorf("script line %d: word takes one value", lineNo)
			}
			v, err := strconv.ParseUint(tokens[1], 0, 8)
			if err != nil {
				return nil, errors.Wrapf(err, "script line %d", lineNo)
			}
			lastWord = uint8(v)
			haveWord = true
			s.steps = append(s.steps, step{word: lastWord})

		case "set":
			if len(tokens) != 4 {
				return nil, errors.Errorf("script line %d: usage: set <ch> on|off <duty>", lineNo)
			}
			ch, err := strconv.ParseUint(tokens[1], 0, 8)
			if err != nil || ch > 7 {
				return nil, errors.Errorf("script line %d: channel %q out of range [0,7]", lineNo, tokens[1])
			}
			var trigger bool
			switch tokens[2] {
			case "on":
				trigger = true
			case "off":
				trigger = false
			default:
				return nil, errors.Errorf("script line %d: expected on or off, got %q", lineNo, tokens[2])
			}
			duty, err := strconv.ParseUint(tokens[3], 0, 8)
			if err != nil || duty > 15 {
				return nil, errors.Errorf("script line %d: duty %q out of range [0,15]", lineNo, tokens[3])
			}
			lastWord = pwm.ControlWord{Trigger: trigger, Channel: uint8(ch), Duty: uint8(duty)}.Encode()
			haveWord = true
			s.steps = append(s.steps, step{word: lastWord})

		case "hold":
			if len(tokens) != 2 {
				return nil, errors.Errorf("script line %d: hold takes a tick count", lineNo)
			}
			if !haveWord {
				return nil, errors.Errorf("script line %d: hold before any word", lineNo)
			}
			n, err := strconv.ParseUint(tokens[1], 0, 32)
			if err != nil || n == 0 {
				return nil, errors.Errorf("script line %d: invalid hold count %q", lineNo, tokens[1])
			}
			for i := uint64(0); i < n; i++ {
				s.steps = append(s.steps, step{word: lastWord})
			}

		case "reset":
			n := uint64(1)
			if len(tokens) == 2 {
				var err error
				n, err = strconv.ParseUint(tokens[1], 0, 32)
				if err != nil || n == 0 {
					return nil, errors.Errorf("script line %d: invalid reset count %q", lineNo, tokens[1])
				}
			} else if len(tokens) > 2 {
				return nil, errors.Errorf("script line %d: reset takes at most one count", lineNo)
			}
			for i := uint64(0); i < n; i++ {
				s.steps = append(s.steps, step{reset: true})
			}

		case "mark":
			if len(tokens) != 2 {
				return nil, errors.Errorf("script line %d: mark takes one quoted label", lineNo)
			}
			if len(s.steps) == 0 {
				return nil, errors.Errorf("script line %d: mark before any step", lineNo)
			}
			s.steps[len(s.steps)-1].mark = tokens[1]

		default:
			return nil, errors.Errorf("script line %d: unknown command %q", lineNo, tokens[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading script")
	}

	return s, nil
}

// Len returns the total number of ticks in the program.
func (s *Script) Len() int {
	return len(s.steps)
}

func (s *Script) Next() (uint8, bool, bool) {
	if s.pos >= len(s.steps) {
		return 0, false, false
	}
	st := s.steps[s.pos]
	s.pos++
	if st.mark != "" {
		s.logger.Info("script mark", "label", st.mark, "tick", s.pos-1)
	}
	return st.word, st.reset, true
}
