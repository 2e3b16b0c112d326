package pwm

// OutputVector holds up to MaxChannels output levels as a bitmask, channel 0
// in the least significant bit.
type OutputVector uint8

// Bit returns the output level of channel i.
func (v OutputVector) Bit(i int) bool {
	return (v>>uint(i))&1 == 1
}

// Levels expands the vector into a slice of n levels, channel 0 first.
func (v OutputVector) Levels(n int) []bool {
	levels := make([]bool, n)
	for i := range levels {
		levels[i] = v.Bit(i)
	}
	return levels
}

// String renders the vector as a binary string, channel 0 rightmost,
// e.g. "00101" for channels 0 and 2 high out of 5.
func (v OutputVector) String() string {
	return v.Format(MaxChannels)
}

// Format renders the first n channels, channel 0 rightmost.
func (v OutputVector) Format(n int) string {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		if v.Bit(i) {
			buf[n-1-i] = '1'
		} else {
			buf[n-1-i] = '0'
		}
	}
	return string(buf)
}
