// Package geom holds the 2-D geometry used to place agents and predictions
// on the map: poses, quaternion yaw and the local/global rigid transforms.
//
// Local coordinates follow the convention of the prediction model inputs:
// the reference agent sits at the origin facing +y.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
)

// Pose is a position on the map with an orientation quaternion (w, x, y, z).
type Pose struct {
	Translation r2.Vec
	Rotation    quat.Number
}

// Yaw returns the heading of the pose in radians.
func (p Pose) Yaw() float64 {
	return Yaw(p.Rotation)
}

// Identity is the quaternion with no rotation.
var Identity = quat.Number{Real: 1}

// QuatFromYaw builds the rotation about the z axis by yaw radians.
func QuatFromYaw(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// Yaw rotates the unit x vector by q and returns the angle of the result in
// the xy plane. A zero quaternion has no defined heading and yields 0.
func Yaw(q quat.Number) float64 {
	if quat.Abs(q) == 0 {
		return 0
	}
	v := quat.Mul(quat.Mul(q, quat.Number{Imag: 1}), quat.Inv(q))
	return math.Atan2(v.Jmag, v.Imag)
}

// headingAngle converts a yaw into the angle between the local +y axis and
// the global +x axis.
func headingAngle(yaw float64) float64 {
	return math.Pi/2 - yaw
}

// ToGlobal maps points expressed in the local frame of the reference pose
// into map coordinates. Every point is rotated by the reference orientation
// and then translated by the reference position.
func ToGlobal(local []r2.Vec, translation r2.Vec, rotation quat.Number) []r2.Vec {
	rot := r2.NewRotation(-headingAngle(Yaw(rotation)), r2.Vec{})
	out := make([]r2.Vec, len(local))
	for i, p := range local {
		out[i] = r2.Add(rot.Rotate(p), translation)
	}
	return out
}

// ToLocal is the inverse of ToGlobal.
func ToLocal(global []r2.Vec, translation r2.Vec, rotation quat.Number) []r2.Vec {
	rot := r2.NewRotation(headingAngle(Yaw(rotation)), r2.Vec{})
	out := make([]r2.Vec, len(global))
	for i, p := range global {
		out[i] = rot.Rotate(r2.Sub(p, translation))
	}
	return out
}

// PoseToGlobal is ToGlobal with the reference given as a Pose.
func PoseToGlobal(local []r2.Vec, ref Pose) []r2.Vec {
	return ToGlobal(local, ref.Translation, ref.Rotation)
}

// PoseToLocal is ToLocal with the reference given as a Pose.
func PoseToLocal(global []r2.Vec, ref Pose) []r2.Vec {
	return ToLocal(global, ref.Translation, ref.Rotation)
}

// Repeat returns n copies of p.
func Repeat(p r2.Vec, n int) []r2.Vec {
	if n <= 0 {
		return nil
	}
	out := make([]r2.Vec, n)
	for i := range out {
		out[i] = p
	}
	return out
}
