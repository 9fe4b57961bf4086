package particle

import (
	"math"
	"testing"

	"github.com/pthm-cable/motes/vec"
)

// ball embeds Base the way user particle types do.
type ball struct {
	Base
	Vel vec.V2D
}

type dot struct {
	Point
}

func TestEmbeddedRecordsSatisfyContract(t *testing.T) {
	var ps []Particle
	ps = append(ps, &ball{Base: Base{Idx: 1, Pos: vec.New(2, 3), R: 4, RGBA: 0xff0000ff}})
	ps = append(ps, &dot{Point: Point{Idx: 2, X: 5, Y: 6, R: 7, RGBA: 0x00ff00ff}})

	x, y := ps[0].Position()
	if ps[0].Index() != 1 || x != 2 || y != 3 || ps[0].Radius() != 4 || ps[0].Color() != 0xff0000ff {
		t.Errorf("ball fields not exposed: %+v", ps[0])
	}
	x, y = ps[1].Position()
	if ps[1].Index() != 2 || x != 5 || y != 6 || ps[1].Radius() != 7 || ps[1].Color() != 0x00ff00ff {
		t.Errorf("dot fields not exposed: %+v", ps[1])
	}
}

func TestPackUnpack(t *testing.T) {
	c := Pack(0x12, 0x34, 0x56, 0x78)
	if c != 0x12345678 {
		t.Fatalf("Pack: got %#x", c)
	}
	r, g, b, a := Unpack(c)
	if r != 0x12 || g != 0x34 || b != 0x56 || a != 0x78 {
		t.Errorf("Unpack: got %x %x %x %x", r, g, b, a)
	}

	dst := make([]float32, 4)
	Floats(0xff00ff80, dst)
	if dst[0] != 1 || dst[1] != 0 || dst[2] != 1 || math.Abs(float64(dst[3])-128.0/255) > 1e-6 {
		t.Errorf("Floats: got %v", dst)
	}
}

func TestCollideElasticConservation(t *testing.T) {
	tests := []struct {
		name   string
		m1, m2 float32
		p1, v1 vec.V2D
		p2, v2 vec.V2D
	}{
		{"head-on equal mass", 1, 1, vec.New(0, 0), vec.New(1, 0), vec.New(2, 0), vec.New(-1, 0)},
		{"heavy vs light", 10, 1, vec.New(0, 0), vec.New(2, 1), vec.New(1, 1), vec.New(-3, 0.5)},
		{"glancing", 3, 5, vec.New(0, 0), vec.New(1, 2), vec.New(0.5, 1.8), vec.New(0, -1)},
		{"stationary target", 2, 2, vec.New(5, 5), vec.New(0, 0), vec.New(4, 4), vec.New(1, 1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n1, n2 := CollideElastic(tc.m1, tc.m2, tc.p1, tc.v1, tc.p2, tc.v2)

			before := tc.v1.Scale(tc.m1).Add(tc.v2.Scale(tc.m2))
			after := n1.Scale(tc.m1).Add(n2.Scale(tc.m2))
			if !near(before.X, after.X) || !near(before.Y, after.Y) {
				t.Errorf("momentum not conserved: before %v after %v", before, after)
			}

			keBefore := 0.5*tc.m1*tc.v1.SqrLen() + 0.5*tc.m2*tc.v2.SqrLen()
			keAfter := 0.5*tc.m1*n1.SqrLen() + 0.5*tc.m2*n2.SqrLen()
			if !near(keBefore, keAfter) {
				t.Errorf("kinetic energy not conserved: before %f after %f", keBefore, keAfter)
			}
		})
	}
}

func TestCollideElasticEqualMassHeadOnSwaps(t *testing.T) {
	n1, n2 := CollideElastic(1, 1, vec.New(0, 0), vec.New(1, 0), vec.New(1, 0), vec.New(-1, 0))
	if !near(n1.X, -1) || !near(n2.X, 1) {
		t.Errorf("expected velocities to swap, got %v %v", n1, n2)
	}
}

func TestCollideElasticCoincident(t *testing.T) {
	v1, v2 := vec.New(1, 2), vec.New(3, 4)
	n1, n2 := CollideElastic(1, 1, vec.New(1, 1), v1, vec.New(1, 1), v2)
	if n1 != v1 || n2 != v2 {
		t.Errorf("coincident bodies should be unchanged, got %v %v", n1, n2)
	}
}

func near(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 1e-4*math.Max(1, math.Abs(float64(a)))
}
