package particle

import "github.com/pthm-cable/motes/vec"

// CollideElastic returns the velocities of two bodies after a perfectly elastic collision.
// Masses m1, m2 sit at positions p1, p2 moving with v1, v2. The impulse acts along the
// line of centres, so total momentum and kinetic energy are conserved.
// Coincident positions or a zero total mass leave the velocities unchanged.
func CollideElastic(m1, m2 float32, p1, v1, p2, v2 vec.V2D) (vec.V2D, vec.V2D) {
	d := p1.Sub(p2)
	dist2 := d.SqrLen()
	total := m1 + m2
	if dist2 == 0 || total == 0 {
		return v1, v2
	}

	// Normal component of the relative velocity
	k := v1.Sub(v2).Dot(d) / dist2

	n1 := v1.Sub(d.Scale(2 * m2 / total * k))
	n2 := v2.Add(d.Scale(2 * m1 / total * k))
	return n1, n2
}
