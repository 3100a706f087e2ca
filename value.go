package svsim

import "strconv"

// MaxWidth is the largest bit-vector width this package supports. Values
// wider than this would not fit in a native uint64 and the supported
// SystemVerilog subset never needs them (§3, §4.1).
const MaxWidth = 64

// Value is a width-tagged bit vector: an unsigned integer masked to Width
// bits. The zero Value is invalid; use NewValue.
//
// The invariant 0 <= Bits < 2^Width holds for every Value ever produced by
// this package's operations.
type Value struct {
	Width uint8
	Bits  uint64
}

// NewValue returns a Value of the given width holding bits, masked to fit.
// It panics if width is out of [1, MaxWidth]; that range is a parser/AST
// invariant, never something computed from untrusted runtime data.
func NewValue(width int, bits uint64) Value {
	if width < 1 || width > MaxWidth {
		panic("svsim: value width out of range: " + strconv.Itoa(width))
	}
	return Value{Width: uint8(width), Bits: bits & mask(width)}
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// Mask returns the bitmask for v's width.
func (v Value) Mask() uint64 { return mask(int(v.Width)) }

// Truthy reports whether any bit of v is set, the definition of "true"
// used by ternary guards and if-conditions (§4.1).
func (v Value) Truthy() bool { return v.Bits != 0 }

// Bool returns a single-bit Value representing b.
func Bool(b bool) Value {
	if b {
		return Value{Width: 1, Bits: 1}
	}
	return Value{Width: 1, Bits: 0}
}

func widthMax(a, b Value) int {
	if a.Width > b.Width {
		return int(a.Width)
	}
	return int(b.Width)
}

// And returns the bitwise AND of a and b, zero-extending the narrower
// operand, with a result width equal to the wider operand (§4.1).
func And(a, b Value) Value {
	w := widthMax(a, b)
	return NewValue(w, a.Bits&b.Bits)
}

// Or returns the bitwise OR of a and b.
func Or(a, b Value) Value {
	w := widthMax(a, b)
	return NewValue(w, a.Bits|b.Bits)
}

// Xor returns the bitwise XOR of a and b.
func Xor(a, b Value) Value {
	w := widthMax(a, b)
	return NewValue(w, a.Bits^b.Bits)
}

// Not returns the bitwise complement of v, at v's own width.
func Not(v Value) Value {
	return NewValue(int(v.Width), ^v.Bits)
}

// Add returns a + b, modulo 2^width, at the wider operand's width (§4.1).
func Add(a, b Value) Value {
	w := widthMax(a, b)
	return NewValue(w, a.Bits+b.Bits)
}

// Sub returns a - b via two's complement (a + (^b + 1)), masked to width.
func Sub(a, b Value) Value {
	w := widthMax(a, b)
	m := mask(w)
	nb := (^b.Bits + 1) & m
	return NewValue(w, (a.Bits+nb)&m)
}

// Mul returns a * b, modulo 2^width.
func Mul(a, b Value) Value {
	w := widthMax(a, b)
	return NewValue(w, a.Bits*b.Bits)
}

// cmpResult wraps a boolean comparison result into a 1-bit Value (§4.1:
// "Comparison" always produces width 1).
func cmpResult(b bool) Value { return Bool(b) }

// Eq returns 1 if a == b (zero-extended to the wider width), else 0.
func Eq(a, b Value) Value { return cmpResult(a.Bits == b.Bits) }

// Ne returns 1 if a != b, else 0.
func Ne(a, b Value) Value { return cmpResult(a.Bits != b.Bits) }

// Lt returns 1 if a < b (unsigned), else 0.
func Lt(a, b Value) Value { return cmpResult(a.Bits < b.Bits) }

// Le returns 1 if a <= b (unsigned), else 0.
func Le(a, b Value) Value { return cmpResult(a.Bits <= b.Bits) }

// Gt returns 1 if a > b (unsigned), else 0.
func Gt(a, b Value) Value { return cmpResult(a.Bits > b.Bits) }

// Ge returns 1 if a >= b (unsigned), else 0.
func Ge(a, b Value) Value { return cmpResult(a.Bits >= b.Bits) }

// SignedLt compares a and b as two's-complement signed integers of their
// own (possibly different) widths, sign-extending each to a common width
// first, per §4.1's "Signed comparison uses sign-extension of the MSB".
func SignedLt(a, b Value) Value {
	w := widthMax(a, b)
	return cmpResult(signExtend(a, w) < signExtend(b, w))
}

// SignedLe, SignedGt, and SignedGe are SignedLt's counterparts for the
// other three relational operators.
func SignedLe(a, b Value) Value {
	w := widthMax(a, b)
	return cmpResult(signExtend(a, w) <= signExtend(b, w))
}

func SignedGt(a, b Value) Value {
	w := widthMax(a, b)
	return cmpResult(signExtend(a, w) > signExtend(b, w))
}

func SignedGe(a, b Value) Value {
	w := widthMax(a, b)
	return cmpResult(signExtend(a, w) >= signExtend(b, w))
}

func signExtend(v Value, toWidth int) int64 {
	x := int64(v.Bits)
	signBit := int64(1) << (v.Width - 1)
	if v.Bits&uint64(signBit) != 0 {
		// negative: fill upper bits of the *source* width with 1s, then
		// the value is already a valid two's-complement pattern; widening
		// further just needs sign bits appended above v.Width.
		x -= signBit << 1
	}
	return x
}

// BitSelect returns the single bit at index i (0 = LSB) as a 1-bit Value.
// ok is false if i is out of range ([4.1]'s bit-select IndexOut case);
// callers turn that into an *Error with location context.
func BitSelect(v Value, i int) (Value, bool) {
	if i < 0 || i >= int(v.Width) {
		return Value{}, false
	}
	return Bool((v.Bits>>uint(i))&1 != 0), true
}

// RangeSelect returns bits [hi:lo] (inclusive, hi >= lo) as a Value of
// width hi-lo+1. ok is false if the range is invalid or out of bounds.
func RangeSelect(v Value, hi, lo int) (Value, bool) {
	if hi < lo || lo < 0 || hi >= int(v.Width) {
		return Value{}, false
	}
	w := hi - lo + 1
	return NewValue(w, v.Bits>>uint(lo)), true
}

// Concat concatenates values MSB-first: the first element occupies the
// high bits of the result, per §4.1. The result width is the sum of the
// operand widths and must not exceed MaxWidth.
func Concat(vs ...Value) (Value, bool) {
	total := 0
	for _, v := range vs {
		total += int(v.Width)
	}
	if total < 1 || total > MaxWidth {
		return Value{}, false
	}
	var bits uint64
	shift := uint(total)
	for _, v := range vs {
		shift -= uint(v.Width)
		bits |= (v.Bits & v.Mask()) << shift
	}
	return NewValue(total, bits), true
}

// Replicate concatenates n copies of v (§4.1's `{N{expr}}`).
func Replicate(n int, v Value) (Value, bool) {
	if n <= 0 {
		return Value{}, false
	}
	total := n * int(v.Width)
	if total > MaxWidth {
		return Value{}, false
	}
	var bits uint64
	for i := 0; i < n; i++ {
		bits = (bits << uint(v.Width)) | (v.Bits & v.Mask())
	}
	return NewValue(total, bits), true
}

// Ternary selects a or b by the truthiness of sel, with a result width
// equal to the wider of a and b (§4.1).
func Ternary(sel, a, b Value) Value {
	w := widthMax(a, b)
	if sel.Truthy() {
		return NewValue(w, a.Bits)
	}
	return NewValue(w, b.Bits)
}

// String renders v as SystemVerilog sized-binary literal syntax, e.g.
// "8'b00101010", used in error messages and test diffs.
func (v Value) String() string {
	s := strconv.FormatUint(v.Bits, 2)
	for len(s) < int(v.Width) {
		s = "0" + s
	}
	return strconv.Itoa(int(v.Width)) + "'b" + s
}
