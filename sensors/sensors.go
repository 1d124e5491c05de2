// Package sensors listens to the robot's position feed.
package sensors

import (
	"context"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
	goutils "go.viam.com/utils"
)

// Pose is a position reading in metres, with the orientation when the feed reports one.
type Pose struct {
	X           float64
	Y           float64
	Z           float64
	Orientation spatialmath.Orientation
	ReadingTime time.Time
}

// Point returns the position of the reading.
func (p Pose) Point() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// PoseListener describes a feed that reports where the robot currently believes it is.
type PoseListener interface {
	Name() string
	// Pose reads the feed and returns the reading.
	Pose(ctx context.Context) (Pose, error)
	// Latest returns the most recent successful reading without touching the feed.
	Latest() (Pose, bool)
}

// ValidateGetPose checks every sensorValidationInterval if the provided listener
// returned a pose until either success or sensorValidationMaxTimeout has elapsed.
// Returns an error if no pose was returned.
func ValidateGetPose(
	ctx context.Context,
	listener PoseListener,
	sensorValidationMaxTimeout time.Duration,
	sensorValidationInterval time.Duration,
	logger logging.Logger,
) error {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::sensors::ValidateGetPose")
	defer span.End()

	startTime := time.Now().UTC()

	for {
		_, err := listener.Pose(ctx)
		if err == nil {
			break
		}

		logger.Debugw("ValidateGetPose hit error: ", "error", err)
		if time.Since(startTime) >= sensorValidationMaxTimeout {
			return errors.Wrap(err, "ValidateGetPose timeout")
		}
		if !goutils.SelectContextOrWait(ctx, sensorValidationInterval) {
			return ctx.Err()
		}
	}

	return nil
}
