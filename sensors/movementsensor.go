package sensors

import (
	"context"
	"math"
	"sync"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
)

const metresPerKilometre = 1000

// ErrMovementSensorNoPosition denotes that the provided movement sensor does not report a position.
var ErrMovementSensorNoPosition = errors.New("'movement_sensor' must support Position")

// PositionSource is the part of a movement sensor the listener reads.
type PositionSource interface {
	Position(ctx context.Context, extra map[string]interface{}) (*geo.Point, float64, error)
	Orientation(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error)
}

// MovementSensorListener turns geographic readings of a movement sensor into local metres
// relative to an origin and remembers the most recent one.
type MovementSensorListener struct {
	name                 string
	source               PositionSource
	origin               *geo.Point
	orientationSupported bool
	logger               logging.Logger

	mu     sync.Mutex
	latest Pose
	valid  bool
}

// NewListener returns a listener reading source. A nil origin means (0, 0).
func NewListener(
	name string,
	source PositionSource,
	origin *geo.Point,
	orientationSupported bool,
	logger logging.Logger,
) *MovementSensorListener {
	if origin == nil {
		origin = geo.NewPoint(0, 0)
	}
	return &MovementSensorListener{
		name:                 name,
		source:               source,
		origin:               origin,
		orientationSupported: orientationSupported,
		logger:               logger,
	}
}

// NewMovementSensorListener returns a listener for the movement sensor called movementSensorName.
func NewMovementSensorListener(
	ctx context.Context,
	deps resource.Dependencies,
	movementSensorName string,
	origin *geo.Point,
	logger logging.Logger,
) (*MovementSensorListener, error) {
	_, span := trace.StartSpan(ctx, "viamnavtest::sensors::NewMovementSensorListener")
	defer span.End()

	movementSensor, err := movementsensor.FromDependencies(deps, movementSensorName)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting movement sensor \"%v\" for navigation tests", movementSensorName)
	}

	properties, err := movementSensor.Properties(ctx, make(map[string]interface{}))
	if err != nil {
		return nil, errors.Wrapf(err, "error getting movement sensor properties from \"%v\" for navigation tests", movementSensorName)
	}
	if !properties.PositionSupported {
		return nil, ErrMovementSensorNoPosition
	}

	return NewListener(movementSensorName, movementSensor, origin, properties.OrientationSupported, logger), nil
}

// Name returns the name of the movement sensor.
func (l *MovementSensorListener) Name() string {
	return l.name
}

// Pose reads the movement sensor and returns the position in metres east (x) and north (y) of the origin.
func (l *MovementSensorListener) Pose(ctx context.Context) (Pose, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::sensors::Pose")
	defer span.End()

	position, altitude, err := l.source.Position(ctx, make(map[string]interface{}))
	if err != nil {
		return Pose{}, errors.Wrap(err, "Position error")
	}
	if position == nil {
		return Pose{}, errors.New("Position error: no position reported")
	}

	x, y := LocalOffset(l.origin, position)
	pose := Pose{X: x, Y: y, Z: altitude, ReadingTime: time.Now().UTC()}

	if l.orientationSupported {
		if pose.Orientation, err = l.source.Orientation(ctx, make(map[string]interface{})); err != nil {
			return Pose{}, errors.Wrap(err, "Orientation error")
		}
	}

	l.mu.Lock()
	l.latest = pose
	l.valid = true
	l.mu.Unlock()

	l.logger.Debugw("position reading", "sensor", l.name, "x", pose.X, "y", pose.Y, "z", pose.Z)
	return pose, nil
}

// Latest returns the most recent reading and whether there has been one.
func (l *MovementSensorListener) Latest() (Pose, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.valid
}

// LocalOffset returns how far point lies east and north of origin, in metres.
func LocalOffset(origin, point *geo.Point) (east, north float64) {
	distance := origin.GreatCircleDistance(point) * metresPerKilometre
	if distance == 0 {
		return 0, 0
	}
	bearing := origin.BearingTo(point) * math.Pi / 180
	return distance * math.Sin(bearing), distance * math.Cos(bearing)
}
