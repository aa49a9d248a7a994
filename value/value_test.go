package value

import (
	"testing"
	"time"
)

func TestCompareOrdersByKindThenContent(t *testing.T) {
	e := NewEntity(1)
	a := NewAttribute(":person/name")
	n := NewNumber(5)
	b := NewBoolean(true)
	s := NewString("x")
	i := NewInstant(time.Unix(0, 0))

	ordered := []Value{e, a, n, b, s, i}
	for idx := 0; idx < len(ordered)-1; idx++ {
		if !Less(ordered[idx], ordered[idx+1]) {
			t.Fatalf("expected %v < %v by kind", ordered[idx], ordered[idx+1])
		}
	}
}

func TestCompareContentWithinKind(t *testing.T) {
	if !Less(NewNumber(1), NewNumber(2)) {
		t.Fatal("expected 1 < 2")
	}
	if !Less(NewString("a"), NewString("b")) {
		t.Fatal("expected a < b")
	}
	if !Less(NewBoolean(false), NewBoolean(true)) {
		t.Fatal("expected false < true")
	}
	if !Less(NewEntity(1), NewEntity(2)) {
		t.Fatal("expected entity 1 < entity 2")
	}
}

func TestEqualIsStructural(t *testing.T) {
	if !NewNumber(5).Equal(NewNumber(5)) {
		t.Fatal("expected equal numbers to be Equal")
	}
	if NewNumber(5).Equal(NewString("5")) {
		t.Fatal("values of different kind must never be Equal")
	}
}

func TestTupleProject(t *testing.T) {
	x, y, z := Symbol(1), Symbol(2), Symbol(3)
	src := Tuple{NewNumber(10), NewNumber(20)}
	srcVec := Vector{x, y}

	got := Project(src, srcVec, Vector{y, x})
	want := Tuple{NewNumber(20), NewNumber(10)}
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// z is absent from src -- projected position stays the zero Value.
	got = Project(src, srcVec, Vector{z})
	if got[0].Kind() != KindEntity || got[0].AsEntity() != 0 {
		t.Fatalf("expected zero-value placeholder, got %v", got[0])
	}
}

func TestVectorSharedAndMinus(t *testing.T) {
	a := Vector{1, 2, 3}
	b := Vector{2, 3, 4}

	shared := Shared(a, b)
	if !shared.Equal(Vector{2, 3}) {
		t.Fatalf("unexpected shared: %v", shared)
	}

	left := Minus(a, b)
	if !left.Equal(Vector{1}) {
		t.Fatalf("unexpected minus: %v", left)
	}
}
