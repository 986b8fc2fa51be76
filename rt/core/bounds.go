package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box. Min > Max on any axis means empty.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func EmptyAABB() AABB {
	inf := float32(1e20)
	return AABB{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

func (b AABB) IsEmpty() bool {
	return b.Min.X() > b.Max.X() || b.Min.Y() > b.Max.Y() || b.Min.Z() > b.Max.Z()
}

func (b AABB) Union(o AABB) AABB {
	if b.IsEmpty() {
		return o
	}
	if o.IsEmpty() {
		return b
	}
	return AABB{
		Min: mgl32.Vec3{min(b.Min.X(), o.Min.X()), min(b.Min.Y(), o.Min.Y()), min(b.Min.Z(), o.Min.Z())},
		Max: mgl32.Vec3{max(b.Max.X(), o.Max.X()), max(b.Max.Y(), o.Max.Y()), max(b.Max.Z(), o.Max.Z())},
	}
}

// IntersectsSphere reports whether the box touches the sphere.
func (b AABB) IntersectsSphere(center mgl32.Vec3, radius float32) bool {
	if b.IsEmpty() {
		return false
	}
	var d2 float32
	for i := 0; i < 3; i++ {
		v := center[i]
		if v < b.Min[i] {
			d := b.Min[i] - v
			d2 += d * d
		} else if v > b.Max[i] {
			d := v - b.Max[i]
			d2 += d * d
		}
	}
	return d2 <= radius*radius
}

// AABBInFrustum checks if an AABB is visible within the frustum defined by 6 planes.
// Planes are expected to be in Ax+By+Cz+D=0 form, with the normal pointing INSIDE.
func AABBInFrustum(aabb AABB, planes [6]mgl32.Vec4) bool {
	if aabb.IsEmpty() {
		return false
	}
	for i := 0; i < 6; i++ {
		plane := planes[i]
		// Corner furthest along the plane normal; if it is outside, all are.
		var p mgl32.Vec3
		for axis := 0; axis < 3; axis++ {
			if plane[axis] > 0 {
				p[axis] = aabb.Max[axis]
			} else {
				p[axis] = aabb.Min[axis]
			}
		}

		if plane.Vec3().Dot(p)+plane[3] < 0 {
			return false
		}
	}
	return true
}

// SphereInFrustum is the sphere counterpart of AABBInFrustum.
func SphereInFrustum(center mgl32.Vec3, radius float32, planes [6]mgl32.Vec4) bool {
	for _, plane := range planes {
		if plane.Vec3().Dot(center)+plane[3] < -radius {
			return false
		}
	}
	return true
}

// Rect is a pixel rectangle with its origin at X, Y.
type Rect struct {
	X, Y          float32
	Width, Height float32
}

// Inset shrinks the rectangle by border on every side.
func (r Rect) Inset(border float32) Rect {
	return Rect{
		X:      r.X + border,
		Y:      r.Y + border,
		Width:  r.Width - 2*border,
		Height: r.Height - 2*border,
	}
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
