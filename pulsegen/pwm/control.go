package pwm

import (
	"fmt"

	"github.com/halvard/go-pulsegen/pulsegen/bit"
)

// ControlWord is the decoded view of the 8-bit control bus value consumed on
// every tick. Layout:
//
//	bit 7   trigger        1 = enable the selected channel, 0 = disable it
//	bit 6:4 channel select index of the channel being configured (0..7)
//	bit 3:0 duty code      requested duty level (0..15)
type ControlWord struct {
	Trigger bool
	Channel uint8
	Duty    uint8
}

// DecodeControlWord splits a raw bus value into its fields.
func DecodeControlWord(raw uint8) ControlWord {
	return ControlWord{
		Trigger: bit.IsSet(7, raw),
		Channel: bit.ExtractBits(raw, 6, 4),
		Duty:    bit.ExtractBits(raw, 3, 0),
	}
}

// Encode packs the word back into its bus representation.
func (c ControlWord) Encode() uint8 {
	raw := (c.Channel&0x7)<<4 | c.Duty&0xF
	if c.Trigger {
		raw = bit.Set(7, raw)
	}
	return raw
}

func (c ControlWord) String() string {
	trig := 0
	if c.Trigger {
		trig = 1
	}
	return fmt.Sprintf("trig=%d ch=%d duty=%d", trig, c.Channel, c.Duty)
}
