package encoder

// Sample is the pair of channel levels read after one wake-up.
type Sample struct {
	A, B int
}

func (s Sample) index() int {
	return s.A<<1 | s.B
}

const invalid = 2

// transitions maps prev<<2|cur, each as A<<1|B, to a signed step. A rising
// edge on A while B is low counts forward; the rest follow from walking the
// 00 -> 10 -> 11 -> 01 -> 00 cycle.
var transitions = [16]int{
	// prev 00
	0, -1, +1, invalid,
	// prev 01
	+1, 0, invalid, -1,
	// prev 10
	-1, invalid, 0, +1,
	// prev 11
	invalid, +1, -1, 0,
}

// Decoder is the quadrature state machine. It is not safe for concurrent
// use; the reader loop owns it.
type Decoder struct {
	prev Sample
}

// NewDecoder creates a Decoder seeded with the lines' initial levels.
func NewDecoder(initial Sample) *Decoder {
	return &Decoder{prev: normalize(initial)}
}

// Prev returns the sample the next Decode call is compared against.
func (d *Decoder) Prev() Sample {
	return d.prev
}

// Decode compares s with the previous sample and returns the step: 0 when
// nothing changed, ±1 when exactly one channel changed. When both changed it
// returns ErrProtocolViolation. In every case s becomes the new reference.
func (d *Decoder) Decode(s Sample) (int, error) {
	s = normalize(s)
	step := transitions[d.prev.index()<<2|s.index()]
	d.prev = s
	if step == invalid {
		return 0, ErrProtocolViolation
	}
	return step, nil
}

func normalize(s Sample) Sample {
	if s.A != 0 {
		s.A = 1
	}
	if s.B != 0 {
		s.B = 1
	}
	return s
}
