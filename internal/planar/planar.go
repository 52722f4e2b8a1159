package planar

import "math"

// Vec2 is a point or direction in the motion plane.
type Vec2 struct{ X, Y float64 }

func (v Vec2) Add(w Vec2) Vec2      { return Vec2{v.X + w.X, v.Y + w.Y} }
func (v Vec2) Sub(w Vec2) Vec2      { return Vec2{v.X - w.X, v.Y - w.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Dot(w Vec2) float64   { return v.X*w.X + v.Y*w.Y }
func (v Vec2) Norm() float64        { return math.Hypot(v.X, v.Y) }

// NormInf returns the infinity norm, used for feasibility checks.
func (v Vec2) NormInf() float64 {
	return math.Max(math.Abs(v.X), math.Abs(v.Y))
}

// Perp returns v rotated by +90 degrees. For a point p on a body rotating
// about the origin with unit angular velocity, Perp(p) is its velocity.
func (v Vec2) Perp() Vec2 { return Vec2{-v.Y, v.X} }

// Cross returns the scalar (z) cross product of two planar vectors.
func Cross(a, b Vec2) float64 { return a.X*b.Y - a.Y*b.X }

// Rot2 is a planar rotation stored as cosine/sine.
type Rot2 struct{ C, S float64 }

func NewRot2(theta float64) Rot2 {
	return Rot2{C: math.Cos(theta), S: math.Sin(theta)}
}

func Identity() Rot2 { return Rot2{C: 1} }

func (r Rot2) Apply(v Vec2) Vec2 {
	return Vec2{r.C*v.X - r.S*v.Y, r.S*v.X + r.C*v.Y}
}

func (r Rot2) Compose(o Rot2) Rot2 {
	return Rot2{C: r.C*o.C - r.S*o.S, S: r.S*o.C + r.C*o.S}
}

func (r Rot2) Inverse() Rot2 { return Rot2{C: r.C, S: -r.S} }

func (r Rot2) Angle() float64 { return math.Atan2(r.S, r.C) }

// Transform is a rigid planar placement: rotation followed by translation.
type Transform struct {
	R Rot2
	P Vec2
}

func NewTransform(theta float64, p Vec2) Transform {
	return Transform{R: NewRot2(theta), P: p}
}

func IdentityTransform() Transform { return Transform{R: Identity()} }

// Apply maps a point from the local frame into the parent frame.
func (t Transform) Apply(v Vec2) Vec2 {
	return t.R.Apply(v).Add(t.P)
}

// Compose returns the placement of o's frame expressed through t.
func (t Transform) Compose(o Transform) Transform {
	return Transform{
		R: t.R.Compose(o.R),
		P: t.R.Apply(o.P).Add(t.P),
	}
}

func (t Transform) Inverse() Transform {
	ri := t.R.Inverse()
	return Transform{R: ri, P: ri.Apply(t.P).Scale(-1)}
}

// WrapAngle maps an angle into (-pi, pi].
func WrapAngle(theta float64) float64 {
	w := math.Mod(theta+math.Pi, 2*math.Pi)
	if w <= 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}
