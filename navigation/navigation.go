// Package navigation commands the robot to a goal pose and waits for the navigation stack to finish.
package navigation

import (
	"context"
	"math/rand"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

const fullTurnDegrees = 360

// Destination is a requested goal: x and y in metres, heading in degrees.
type Destination struct {
	X       float64
	Y       float64
	Heading float64
}

// Point returns the goal position in metres.
func (d Destination) Point() r3.Vector {
	return r3.Vector{X: d.X, Y: d.Y}
}

// Pose returns the goal as an rdk pose, which is expressed in millimetres.
func (d Destination) Pose() spatialmath.Pose {
	return spatialmath.NewPose(
		r3.Vector{X: d.X * 1000, Y: d.Y * 1000},
		&spatialmath.OrientationVectorDegrees{OZ: 1, Theta: d.Heading},
	)
}

// Navigator sends the robot to a destination. NavigateTo blocks until the navigation stack reports a
// terminal state and returns whether the goal was reached.
type Navigator interface {
	NavigateTo(ctx context.Context, dest Destination) (bool, error)
}

// RandomDestination draws integer x and y in [minXY, maxXY] and an integer heading in [0, 360).
func RandomDestination(rng *rand.Rand, minXY, maxXY int) Destination {
	width := maxXY - minXY + 1
	x := minXY + rng.Intn(width)
	y := minXY + rng.Intn(width)
	return Destination{
		X:       float64(x),
		Y:       float64(y),
		Heading: float64(rng.Intn(fullTurnDegrees)),
	}
}
