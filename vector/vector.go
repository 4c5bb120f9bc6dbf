// Package vector provides the immutable 2-D vector used for swerve kinematics.
package vector

import (
	"math"

	"github.com/golang/geo/r2"
)

// Vector2 is an immutable planar vector. I points to the robot's left and J points
// forward, so angles measured by Angle grow counter-clockwise from forward.
type Vector2 struct {
	p r2.Point
}

// New returns the vector (i, j).
func New(i, j float64) Vector2 {
	return Vector2{p: r2.Point{X: i, Y: j}}
}

// Polar returns the vector of the given magnitude whose Angle is angleRad.
func Polar(magnitude, angleRad float64) Vector2 {
	return New(magnitude*math.Sin(angleRad), magnitude*math.Cos(angleRad))
}

// Cardinal unit vectors in the field frame.
var (
	Forward  = New(0, 1)
	Backward = New(0, -1)
	Left     = New(1, 0)
	Right    = New(-1, 0)
	Zero     = Vector2{}
)

// I returns the lateral component.
func (v Vector2) I() float64 { return v.p.X }

// J returns the forward component.
func (v Vector2) J() float64 { return v.p.Y }

// Add returns v + o.
func (v Vector2) Add(o Vector2) Vector2 {
	return Vector2{p: v.p.Add(o.p)}
}

// Scale returns v * k.
func (v Vector2) Scale(k float64) Vector2 {
	return Vector2{p: v.p.Mul(k)}
}

// Dot returns the dot product of v and o.
func (v Vector2) Dot(o Vector2) float64 {
	return v.p.Dot(o.p)
}

// Magnitude returns the euclidean length of v.
func (v Vector2) Magnitude() float64 {
	return v.p.Norm()
}

// IsZero reports whether v has no usable direction.
func (v Vector2) IsZero() bool {
	return v.Magnitude() < 1e-9
}

// Angle returns the angle of v from the forward axis in radians, in [0, 2π).
//
// The arc-cosine of the normalized dot product only covers [0, π]; vectors with a
// negative I component are reflected to cover the other half turn. A zero vector has
// no direction and reports 0.
func (v Vector2) Angle() float64 {
	return v.AngleFrom(Forward)
}

// AngleFrom is Angle measured from an arbitrary reference direction.
func (v Vector2) AngleFrom(ref Vector2) float64 {
	if v.IsZero() || ref.IsZero() {
		return 0
	}
	cos := v.Dot(ref) / (v.Magnitude() * ref.Magnitude())
	// rounding can push the ratio just outside acos's domain
	cos = math.Max(-1, math.Min(1, cos))
	angle := math.Acos(cos)
	if ref.cross(v) > 0 {
		angle = 2*math.Pi - angle
	}
	if angle >= 2*math.Pi {
		angle -= 2 * math.Pi
	}
	return angle
}

// cross is the z component of v × o. I points left, so a positive value means o lies
// clockwise of v when seen from above.
func (v Vector2) cross(o Vector2) float64 {
	return v.p.Cross(o.p)
}
