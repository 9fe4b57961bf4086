package vec

import (
	"math"
	"math/rand"
	"testing"
)

func TestArithmetic(t *testing.T) {
	a := New(3, 4)
	b := New(1, 2)

	if got := a.Add(b); got != New(4, 6) {
		t.Errorf("Add: got %v", got)
	}
	if got := a.Sub(b); got != New(2, 2) {
		t.Errorf("Sub: got %v", got)
	}
	if got := a.Mul(b); got != New(3, 8) {
		t.Errorf("Mul: got %v", got)
	}
	if got := a.Div(b); got != New(3, 2) {
		t.Errorf("Div: got %v", got)
	}
	if got := a.Scale(2); got != New(6, 8) {
		t.Errorf("Scale: got %v", got)
	}
	if got := a.AddScalar(1); got != New(4, 5) {
		t.Errorf("AddScalar: got %v", got)
	}
	if got := a.SubScalar(1); got != New(2, 3) {
		t.Errorf("SubScalar: got %v", got)
	}
	if got := a.DivScalar(2); got != New(1.5, 2) {
		t.Errorf("DivScalar: got %v", got)
	}
	if got := a.Dot(b); got != 11 {
		t.Errorf("Dot: got %f", got)
	}
	if got := a.Len(); got != 5 {
		t.Errorf("Len: got %f", got)
	}
	if got := a.SqrLen(); got != 25 {
		t.Errorf("SqrLen: got %f", got)
	}
	if got := a.SqrDist(b); got != 8 {
		t.Errorf("SqrDist: got %f", got)
	}
}

func TestAssignVariants(t *testing.T) {
	v := New(2, 3)
	v.AddAssign(New(1, 1))
	v.SubAssign(New(0, 2))
	v.MulAssign(New(2, 4))
	v.ScaleAssign(0.5)
	v.DivAssign(New(3, 1))
	v.DivScalarAssign(0.5)

	// (2,3)+(1,1)=(3,4) -(0,2)=(3,2) *(2,4)=(6,8) *0.5=(3,4) /(3,1)=(1,4) /0.5=(2,8)
	if v != New(2, 8) {
		t.Errorf("expected (2, 8), got %v", v)
	}

	v.Zero()
	if !v.IsZero() {
		t.Errorf("expected zero vector, got %v", v)
	}
}

func TestDivisionByZeroIsGuarded(t *testing.T) {
	v := New(3, 4)

	if got := v.DivScalar(0); !got.IsZero() {
		t.Errorf("DivScalar(0): expected zero vector, got %v", got)
	}
	if got := v.Div(New(0, 2)); got != New(0, 2) {
		t.Errorf("Div by (0,2): expected (0, 2), got %v", got)
	}
	if got := (V2D{}).Norm(); !got.IsZero() {
		t.Errorf("Norm of zero: expected zero vector, got %v", got)
	}
}

func TestFastInvSqrtErrorBound(t *testing.T) {
	for _, x := range []float32{1e-6, 0.01, 0.5, 1, 2, 3, 10, 1234.5, 1e6, 1e12} {
		want := 1 / math.Sqrt(float64(x))
		got := float64(FastInvSqrt(x))
		if rel := math.Abs(got-want) / want; rel > 0.01 {
			t.Errorf("FastInvSqrt(%g) = %g, want %g (rel err %.4f)", x, got, want, rel)
		}
	}
	if FastInvSqrt(0) != 0 || FastInvSqrt(-1) != 0 {
		t.Error("expected 0 for non-positive input")
	}
}

func TestNormIsApproximatelyUnit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		v := Random(rng, -100, 100, -100, 100)
		if v.IsZero() {
			continue
		}
		if l := v.Norm().Len(); math.Abs(float64(l)-1) > 0.01 {
			t.Fatalf("Norm(%v) has length %f", v, l)
		}
	}
}

func TestLimit(t *testing.T) {
	short := New(1, 1)
	if got := short.Limit(10); got != short {
		t.Errorf("Limit should not change short vector, got %v", got)
	}

	long := New(30, 40)
	l := long.Limit(5).Len()
	if math.Abs(float64(l)-5) > 0.05 {
		t.Errorf("expected length ~5 after Limit, got %f", l)
	}
}

func TestRandomRanges(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		v := Random(rng, 10, 20, -5, 0)
		if v.X < 10 || v.X >= 20 || v.Y < -5 || v.Y >= 0 {
			t.Fatalf("Random out of range: %v", v)
		}
	}

	u := RandomUnit(rng, 3)
	if math.Abs(float64(u.Len())-3) > 1e-4 {
		t.Errorf("RandomUnit length: expected 3, got %f", u.Len())
	}
}

func TestRandomIsReproducible(t *testing.T) {
	a := Random(rand.New(rand.NewSource(99)), 0, 1, 0, 1)
	b := Random(rand.New(rand.NewSource(99)), 0, 1, 0, 1)
	if a != b {
		t.Errorf("same seed produced %v and %v", a, b)
	}
}

func TestR2Roundtrip(t *testing.T) {
	v := New(1.5, -2.25)
	if got := FromR2(v.R2()); got != v {
		t.Errorf("roundtrip: got %v, want %v", got, v)
	}
}
