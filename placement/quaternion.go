package placement

import (
	"math"

	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is a rotation in the (x, y, z, w) component order the simulator takes poses in.
type Quaternion struct {
	X float64
	Y float64
	Z float64
	W float64
}

// EulerToQuaternion converts roll, pitch and yaw (radians) into a quaternion.
func EulerToQuaternion(roll, pitch, yaw float64) Quaternion {
	sr, cr := math.Sincos(roll / 2)
	sp, cp := math.Sincos(pitch / 2)
	sy, cy := math.Sincos(yaw / 2)

	return Quaternion{
		X: sr*cp*cy - cr*sp*sy,
		Y: cr*sp*cy + sr*cp*sy,
		Z: cr*cp*sy - sr*sp*cy,
		W: cr*cp*cy + sr*sp*sy,
	}
}

// Number returns the quaternion as a gonum quaternion, real part first.
func (q Quaternion) Number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Orientation returns the quaternion as an rdk orientation.
func (q Quaternion) Orientation() spatialmath.Orientation {
	return spatialmath.QuatToOV(q.Number())
}

// Norm returns the length of the quaternion; 1 for a valid rotation.
func (q Quaternion) Norm() float64 {
	return quat.Abs(q.Number())
}
