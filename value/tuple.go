package value

// Tuple is an ordered sequence of Values. Its positional meaning is given
// by the Vector carried alongside it by whatever Relation produced it;
// Tuple itself is just the payload.
type Tuple []Value

// Clone returns an independent copy of the tuple.
func (t Tuple) Clone() Tuple {
	out := make(Tuple, len(t))
	copy(out, t)
	return out
}

// Project returns a new tuple built by picking, in order, the positions
// of src named by srcVec that appear in wantVec -- i.e. t[i] becomes the
// value whose symbol is wantVec[i].
func Project(src Tuple, srcVec Vector, wantVec Vector) Tuple {
	out := make(Tuple, len(wantVec))
	for i, sym := range wantVec {
		if j := srcVec.IndexOf(sym); j >= 0 {
			out[i] = src[j]
		}
	}
	return out
}

// Equal reports structural equality between two tuples of equal length.
func (t Tuple) Equal(o Tuple) bool {
	if len(t) != len(o) {
		return false
	}
	for i := range t {
		if !t[i].Equal(o[i]) {
			return false
		}
	}
	return true
}
