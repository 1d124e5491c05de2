package sensors_test

import (
	"context"
	"testing"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	s "github.com/viam-modules/viam-navtest/sensors"
	"github.com/viam-modules/viam-navtest/sensors/inject"
)

func TestValidateGetPose(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	sensorValidationMaxTimeout := time.Duration(50) * time.Millisecond
	sensorValidationInterval := time.Duration(10) * time.Millisecond

	t.Run("returns nil if a pose reading succeeds immediately", func(t *testing.T) {
		listener := &inject.PoseListener{
			PoseFunc: func(ctx context.Context) (s.Pose, error) { return s.Pose{X: 1}, nil },
		}
		err := s.ValidateGetPose(ctx, listener, sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("returns nil if a pose reading succeeds within the timeout", func(t *testing.T) {
		calls := 0
		listener := &inject.PoseListener{
			PoseFunc: func(ctx context.Context) (s.Pose, error) {
				calls++
				if calls < 3 {
					return s.Pose{}, errors.New("warming up")
				}
				return s.Pose{}, nil
			},
		}
		err := s.ValidateGetPose(ctx, listener, sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, calls, test.ShouldEqual, 3)
	})

	t.Run("returns error if no pose reading succeeds within the timeout", func(t *testing.T) {
		listener := &inject.PoseListener{
			PoseFunc: func(ctx context.Context) (s.Pose, error) { return s.Pose{}, errors.New("invalid sensor") },
		}
		err := s.ValidateGetPose(ctx, listener, sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeError, errors.New("ValidateGetPose timeout: invalid sensor"))
	})

	t.Run("returns error if no pose reading succeeds by the time the context is cancelled", func(t *testing.T) {
		cancelledCtx, cancelFunc := context.WithCancel(context.Background())
		cancelFunc()

		listener := &inject.PoseListener{
			PoseFunc: func(ctx context.Context) (s.Pose, error) { return s.Pose{}, errors.New("warming up") },
		}
		err := s.ValidateGetPose(cancelledCtx, listener, sensorValidationMaxTimeout, sensorValidationInterval, logger)
		test.That(t, err, test.ShouldBeError, context.Canceled)
	})
}

func TestNewMovementSensorListener(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	t.Run("returns a listener for a movement sensor that supports position", func(t *testing.T) {
		name := string(s.GoodOdometer)
		listener, err := s.NewMovementSensorListener(ctx, s.SetupDeps(s.GoodOdometer), name, nil, logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, listener.Name(), test.ShouldEqual, name)
	})

	t.Run("returns an error when the movement sensor does not exist", func(t *testing.T) {
		name := string(s.GibberishMovementSensor)
		listener, err := s.NewMovementSensorListener(ctx, s.SetupDeps(s.GibberishMovementSensor), name, nil, logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "error getting movement sensor \"gibberish_movement_sensor\"")
		test.That(t, listener, test.ShouldBeNil)
	})

	t.Run("returns an error when properties cannot be read", func(t *testing.T) {
		name := string(s.MovementSensorWithErroringPropertiesFunc)
		_, err := s.NewMovementSensorListener(ctx, s.SetupDeps(s.MovementSensorWithErroringPropertiesFunc), name, nil, logger)
		test.That(t, err, test.ShouldBeError,
			errors.New("error getting movement sensor properties from \""+name+"\" for navigation tests: error getting properties"))
	})

	t.Run("returns an error when the movement sensor does not report a position", func(t *testing.T) {
		name := string(s.MovementSensorWithoutPosition)
		_, err := s.NewMovementSensorListener(ctx, s.SetupDeps(s.MovementSensorWithoutPosition), name, nil, logger)
		test.That(t, err, test.ShouldBeError, s.ErrMovementSensorNoPosition)
	})
}

func TestMovementSensorListenerPose(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	t.Run("converts the geographic position into metres from the origin", func(t *testing.T) {
		listener, err := s.NewMovementSensorListener(ctx, s.SetupDeps(s.GoodOdometer), string(s.GoodOdometer), nil, logger)
		test.That(t, err, test.ShouldBeNil)

		_, ok := listener.Latest()
		test.That(t, ok, test.ShouldBeFalse)

		pose, err := listener.Pose(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pose.X, test.ShouldAlmostEqual, 0, 1e-6)
		test.That(t, pose.Y, test.ShouldAlmostEqual, 1.112, 0.01)
		test.That(t, pose.Orientation, test.ShouldNotBeNil)

		latest, ok := listener.Latest()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, latest.Point(), test.ShouldResemble, pose.Point())
	})

	t.Run("skips the orientation when the sensor does not report one", func(t *testing.T) {
		listener, err := s.NewMovementSensorListener(ctx, s.SetupDeps(s.PositionOnlySensor), string(s.PositionOnlySensor), nil, logger)
		test.That(t, err, test.ShouldBeNil)

		pose, err := listener.Pose(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pose.Orientation, test.ShouldBeNil)
	})

	t.Run("returns an error and keeps no reading when the sensor fails", func(t *testing.T) {
		name := string(s.OdometerWithErroringFunctions)
		listener, err := s.NewMovementSensorListener(ctx, s.SetupDeps(s.OdometerWithErroringFunctions), name, nil, logger)
		test.That(t, err, test.ShouldBeNil)

		_, err = listener.Pose(ctx)
		test.That(t, err, test.ShouldBeError, errors.New("Position error: "+s.InvalidSensorTestErrMsg))

		_, ok := listener.Latest()
		test.That(t, ok, test.ShouldBeFalse)
	})
}

func TestLocalOffset(t *testing.T) {
	origin := geo.NewPoint(40.7, -74)

	t.Run("returns zero for the origin itself", func(t *testing.T) {
		east, north := s.LocalOffset(origin, geo.NewPoint(40.7, -74))
		test.That(t, east, test.ShouldEqual, 0.0)
		test.That(t, north, test.ShouldEqual, 0.0)
	})

	t.Run("maps a point to the east onto positive x", func(t *testing.T) {
		east, north := s.LocalOffset(origin, origin.PointAtDistanceAndBearing(0.002, 90))
		test.That(t, east, test.ShouldAlmostEqual, 2, 0.01)
		test.That(t, north, test.ShouldAlmostEqual, 0, 0.01)
	})

	t.Run("maps a point to the south onto negative y", func(t *testing.T) {
		east, north := s.LocalOffset(origin, origin.PointAtDistanceAndBearing(0.003, 180))
		test.That(t, east, test.ShouldAlmostEqual, 0, 0.01)
		test.That(t, north, test.ShouldAlmostEqual, -3, 0.01)
	})
}
