package layout

import (
	"math"

	"mindo/domain/core/valueobjects"
)

// ForceOptions configures the force-directed simulation
type ForceOptions struct {
	Ticks             int
	ChargeBase        float64
	ChargePerWeight   float64
	CollideBase       float64
	CollidePerWeight  float64
	CollideIterations int
	LinkDistance      float64
}

// DefaultForceOptions returns charge -(500+50w), collide 100+10w, links of 200
// and 300 ticks
func DefaultForceOptions() ForceOptions {
	return ForceOptions{
		Ticks:             300,
		ChargeBase:        500,
		ChargePerWeight:   50,
		CollideBase:       100,
		CollidePerWeight:  10,
		CollideIterations: 3,
		LinkDistance:      200,
	}
}

const (
	alphaMin      = 0.001
	velocityDecay = 0.6
	// Minimum squared distance used by the charge force.
	distanceMin2 = 1.0
)

type particle struct {
	x, y   float64
	vx, vy float64
	charge float64
	radius float64
}

// lcg is the fixed-seed linear congruential generator used for jiggling
// coincident particles apart; runs are reproducible.
type lcg struct{ s uint64 }

func (l *lcg) next() float64 {
	const a, c, m = 1664525, 1013904223, 4294967296
	l.s = (a*l.s + c) % m
	return float64(l.s) / m
}

func (l *lcg) jiggle() float64 {
	return (l.next() - 0.5) * 1e-6
}

// Force runs a velocity-Verlet particle simulation for a fixed number of ticks:
// many-body repulsion scaled by weight, centering on the origin, weighted
// collision radii and springs along edges. There is no convergence check.
func Force(nodes []Node, edges []Edge, opts ForceOptions) Result {
	res := Result{Positions: make(map[valueobjects.NodeID]valueobjects.Position, len(nodes))}
	if len(nodes) == 0 {
		return res
	}

	ix, links := index(nodes, edges)
	ps := make([]particle, len(nodes))
	for i, n := range nodes {
		w := effectiveWeight(n.Weight)
		ps[i] = particle{
			x:      n.Position.X,
			y:      n.Position.Y,
			charge: -(opts.ChargeBase + w*opts.ChargePerWeight),
			radius: opts.CollideBase + w*opts.CollidePerWeight,
		}
	}
	seedCoincident(ps)

	// Link strength and bias follow node degree so hubs are not torn apart.
	degree := make([]int, len(nodes))
	for _, e := range links {
		degree[ix[e.Source]]++
		degree[ix[e.Target]]++
	}

	rng := &lcg{s: 1}
	alpha := 1.0
	alphaDecay := 1 - math.Pow(alphaMin, 1/float64(max(opts.Ticks, 1)))

	for tick := 0; tick < opts.Ticks; tick++ {
		alpha += (0 - alpha) * alphaDecay

		applyCharge(ps, alpha, rng)
		applyCenter(ps)
		for k := 0; k < opts.CollideIterations; k++ {
			applyCollide(ps, rng)
		}
		for _, e := range links {
			s, t := ix[e.Source], ix[e.Target]
			applyLink(&ps[s], &ps[t], degree[s], degree[t], opts.LinkDistance, alpha, rng)
		}

		for i := range ps {
			ps[i].vx *= velocityDecay
			ps[i].vy *= velocityDecay
			ps[i].x += ps[i].vx
			ps[i].y += ps[i].vy
		}
	}

	for i, n := range nodes {
		res.Positions[n.ID] = valueobjects.Position{X: ps[i].x, Y: ps[i].y}
	}
	return res
}

// seedCoincident spreads particles that share a position on a phyllotaxis
// spiral around it
func seedCoincident(ps []particle) {
	type key struct{ x, y float64 }
	seen := make(map[key]int, len(ps))
	for i := range ps {
		k := key{ps[i].x, ps[i].y}
		n := seen[k]
		seen[k] = n + 1
		if n == 0 {
			continue
		}
		r := 10 * math.Sqrt(0.5+float64(n))
		a := float64(n) * math.Pi * (3 - math.Sqrt(5))
		ps[i].x += r * math.Cos(a)
		ps[i].y += r * math.Sin(a)
	}
}

func applyCharge(ps []particle, alpha float64, rng *lcg) {
	for i := range ps {
		for j := range ps {
			if i == j {
				continue
			}
			x := ps[j].x - ps[i].x
			y := ps[j].y - ps[i].y
			if x == 0 {
				x = rng.jiggle()
			}
			if y == 0 {
				y = rng.jiggle()
			}
			l := x*x + y*y
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}
			w := ps[j].charge * alpha / l
			ps[i].vx += x * w
			ps[i].vy += y * w
		}
	}
}

func applyCenter(ps []particle) {
	var sx, sy float64
	for _, p := range ps {
		sx += p.x
		sy += p.y
	}
	sx /= float64(len(ps))
	sy /= float64(len(ps))
	for i := range ps {
		ps[i].x -= sx
		ps[i].y -= sy
	}
}

func applyCollide(ps []particle, rng *lcg) {
	for i := range ps {
		a := &ps[i]
		ri := a.radius
		ri2 := ri * ri
		xi := a.x + a.vx
		yi := a.y + a.vy
		for j := i + 1; j < len(ps); j++ {
			b := &ps[j]
			rj := b.radius
			r := ri + rj
			x := xi - b.x - b.vx
			y := yi - b.y - b.vy
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = rng.jiggle()
				l += x * x
			}
			if y == 0 {
				y = rng.jiggle()
				l += y * y
			}
			l = math.Sqrt(l)
			l = (r - l) / l
			x *= l
			y *= l
			rj2 := rj * rj
			share := rj2 / (ri2 + rj2)
			a.vx += x * share
			a.vy += y * share
			b.vx -= x * (1 - share)
			b.vy -= y * (1 - share)
		}
	}
}

func applyLink(s, t *particle, degS, degT int, distance, alpha float64, rng *lcg) {
	x := t.x + t.vx - s.x - s.vx
	y := t.y + t.vy - s.y - s.vy
	if x == 0 {
		x = rng.jiggle()
	}
	if y == 0 {
		y = rng.jiggle()
	}
	strength := 1 / float64(min(degS, degT))
	bias := float64(degS) / float64(degS+degT)

	l := math.Sqrt(x*x + y*y)
	l = (l - distance) / l * alpha * strength
	x *= l
	y *= l
	t.vx -= x * bias
	t.vy -= y * bias
	s.vx += x * (1 - bias)
	s.vy += y * (1 - bias)
}
