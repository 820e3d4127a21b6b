package layout

import (
	"math"

	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"
)

// All forces below run with mu held and add to body velocities, scaled by
// alpha, the way d3-force does.

// distanceMin2 clamps the squared distance in the many-body force so
// near-coincident nodes do not receive unbounded kicks.
const distanceMin2 = 1

// separateCoincident nudges bodies that share an exact position apart.
// Both the spring and the Barnes-Hut tree are undefined for them.
func (s *Simulation) separateCoincident() {
	seen := make(map[r2.Vec]bool, len(s.bodies))
	for _, b := range s.bodies {
		if seen[b.pos] && b.fixed == nil {
			b.pos = r2.Add(b.pos, s.jitter(1e-3))
		}
		seen[b.pos] = true
	}
}

func (s *Simulation) applyLinks() {
	for _, sp := range s.springs {
		d := r2.Sub(r2.Add(sp.tgt.pos, sp.tgt.vel), r2.Add(sp.src.pos, sp.src.vel))
		if d.X == 0 && d.Y == 0 {
			d = s.jitter(1e-6)
		}
		l := r2.Norm(d)
		k := (l - sp.distance) / l * s.alpha * sp.strength
		d = r2.Scale(k, d)
		sp.tgt.vel = r2.Sub(sp.tgt.vel, r2.Scale(sp.bias, d))
		sp.src.vel = r2.Add(sp.src.vel, r2.Scale(1-sp.bias, d))
	}
}

// repulsion is the many-body kernel: v points from p1 towards the mass m2.
// A negative charge pushes p1 away.
func (s *Simulation) repulsion(p1, p2 barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
	if p1 == p2 {
		return r2.Vec{}
	}
	d2 := v.X*v.X + v.Y*v.Y
	if d2 == 0 {
		return r2.Vec{}
	}
	if d2 < distanceMin2 {
		d2 = math.Sqrt(distanceMin2 * d2)
	}
	return r2.Scale(s.cfg.Charge*m2*s.alpha/d2, v)
}

func (s *Simulation) applyManyBody() {
	if len(s.bodies) < 2 {
		return
	}
	if !s.cfg.ExactRepulsion {
		particles := make([]barneshut.Particle2, len(s.bodies))
		for i, b := range s.bodies {
			particles[i] = b
		}
		plane, err := barneshut.NewPlane(particles)
		if err == nil {
			forces := make([]r2.Vec, len(s.bodies))
			for i, b := range s.bodies {
				forces[i] = plane.ForceOn(b, s.cfg.Theta, s.repulsion)
			}
			for i, b := range s.bodies {
				b.vel = r2.Add(b.vel, forces[i])
			}
			return
		}
	}
	s.applyManyBodyExact()
}

// applyManyBodyExact is the O(n²) pairwise fallback.
func (s *Simulation) applyManyBodyExact() {
	forces := make([]r2.Vec, len(s.bodies))
	for i, a := range s.bodies {
		for j, b := range s.bodies {
			if i == j {
				continue
			}
			forces[i] = r2.Add(forces[i], s.repulsion(a, b, 1, 1, r2.Sub(b.pos, a.pos)))
		}
	}
	for i, b := range s.bodies {
		b.vel = r2.Add(b.vel, forces[i])
	}
}

// applyPosition is d3's forceX/forceY pulling every node weakly towards
// the viewport centre.
func (s *Simulation) applyPosition() {
	c := s.center()
	k := s.cfg.PositionStrength * s.alpha
	for _, b := range s.bodies {
		b.vel = r2.Add(b.vel, r2.Scale(k, r2.Sub(c, b.pos)))
	}
}

// applyCollide pushes apart bodies closer than twice CollideRadius.
func (s *Simulation) applyCollide() {
	r := 2 * s.cfg.CollideRadius
	for i, a := range s.bodies {
		for _, b := range s.bodies[i+1:] {
			d := r2.Sub(r2.Add(a.pos, a.vel), r2.Add(b.pos, b.vel))
			l2 := d.X*d.X + d.Y*d.Y
			if l2 >= r*r {
				continue
			}
			if l2 == 0 {
				d = s.jitter(1e-6)
				l2 = d.X*d.X + d.Y*d.Y
			}
			l := math.Sqrt(l2)
			push := r2.Scale((r-l)/l*0.5, d)
			a.vel = r2.Add(a.vel, push)
			b.vel = r2.Sub(b.vel, push)
		}
	}
}

// applyCenter translates free bodies so their mean sits on the viewport
// centre. Unlike the other forces it moves positions directly.
func (s *Simulation) applyCenter() {
	var sum r2.Vec
	n := 0
	for _, b := range s.bodies {
		if b.fixed != nil || !finite(b.pos) {
			continue
		}
		sum = r2.Add(sum, b.pos)
		n++
	}
	if n == 0 {
		return
	}
	shift := r2.Sub(s.center(), r2.Scale(1/float64(n), sum))
	for _, b := range s.bodies {
		if b.fixed == nil {
			b.pos = r2.Add(b.pos, shift)
		}
	}
}

// resetNonFinite puts bodies with NaN or infinite coordinates back at the
// centre with a little jitter.
func (s *Simulation) resetNonFinite() {
	for _, b := range s.bodies {
		if finite(b.pos) && finite(b.vel) {
			continue
		}
		b.pos = r2.Add(s.center(), s.jitter(1))
		b.vel = r2.Vec{}
	}
}
