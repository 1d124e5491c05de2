package sensors

import (
	"context"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/spatialmath"
	"go.viam.com/rdk/testutils/inject"
)

var (
	// Position is the successful mock position result used for testing, about 1.11 m north of (0, 0).
	Position = geo.NewPoint(0.00001, 0)
	// Orientation is the successful mock orientation result used for testing.
	Orientation = spatialmath.NewZeroOrientation()
)

// TestSensor represents sensors used for testing.
type TestSensor string

const (
	// InvalidSensorTestErrMsg represents an error message that indicates that the sensor is invalid.
	InvalidSensorTestErrMsg = "invalid test sensor"

	// GoodOdometer is a movement sensor that reports position and orientation.
	GoodOdometer TestSensor = "good_odometer"
	// PositionOnlySensor is a movement sensor that reports a position but no orientation.
	PositionOnlySensor TestSensor = "position_only_sensor"
	// OdometerWithErroringFunctions is a movement sensor whose functions return errors.
	OdometerWithErroringFunctions TestSensor = "odometer_with_erroring_functions"
	// MovementSensorWithoutPosition is a movement sensor that does not support position.
	MovementSensorWithoutPosition TestSensor = "movement_sensor_without_position"
	// MovementSensorWithErroringPropertiesFunc is a movement sensor whose Properties function returns an error.
	MovementSensorWithErroringPropertiesFunc TestSensor = "movement_sensor_with_erroring_properties_function"
	// GibberishMovementSensor is a movement sensor that can't be found in the dependencies.
	GibberishMovementSensor TestSensor = "gibberish_movement_sensor"
)

var testMovementSensors = map[TestSensor]func() *inject.MovementSensor{
	GoodOdometer:                             getGoodOdometer,
	PositionOnlySensor:                       getPositionOnlySensor,
	OdometerWithErroringFunctions:            getOdometerWithErroringFunctions,
	MovementSensorWithoutPosition:            getMovementSensorWithoutPosition,
	MovementSensorWithErroringPropertiesFunc: getMovementSensorWithErroringPropertiesFunc,
}

// SetupDeps returns the dependencies holding the movement sensor named by movementSensorName.
func SetupDeps(movementSensorName TestSensor) resource.Dependencies {
	deps := make(resource.Dependencies)
	if getMovementSensorFunc, ok := testMovementSensors[movementSensorName]; ok {
		deps[movementsensor.Named(string(movementSensorName))] = getMovementSensorFunc()
	}
	return deps
}

func getGoodOdometer() *inject.MovementSensor {
	odometer := &inject.MovementSensor{}
	odometer.PositionFunc = func(ctx context.Context, extra map[string]interface{}) (*geo.Point, float64, error) {
		return Position, 0, nil
	}
	odometer.OrientationFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
		return Orientation, nil
	}
	odometer.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{
			PositionSupported:    true,
			OrientationSupported: true,
		}, nil
	}
	return odometer
}

func getPositionOnlySensor() *inject.MovementSensor {
	sensor := &inject.MovementSensor{}
	sensor.PositionFunc = func(ctx context.Context, extra map[string]interface{}) (*geo.Point, float64, error) {
		return Position, 0, nil
	}
	sensor.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{PositionSupported: true}, nil
	}
	return sensor
}

func getOdometerWithErroringFunctions() *inject.MovementSensor {
	odometer := &inject.MovementSensor{}
	odometer.PositionFunc = func(ctx context.Context, extra map[string]interface{}) (*geo.Point, float64, error) {
		return &geo.Point{}, 0.0, errors.New(InvalidSensorTestErrMsg)
	}
	odometer.OrientationFunc = func(ctx context.Context, extra map[string]interface{}) (spatialmath.Orientation, error) {
		return &spatialmath.Quaternion{}, errors.New(InvalidSensorTestErrMsg)
	}
	odometer.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{
			PositionSupported:    true,
			OrientationSupported: true,
		}, nil
	}
	return odometer
}

func getMovementSensorWithoutPosition() *inject.MovementSensor {
	movementSensor := &inject.MovementSensor{}
	movementSensor.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{OrientationSupported: true}, nil
	}
	return movementSensor
}

func getMovementSensorWithErroringPropertiesFunc() *inject.MovementSensor {
	movementSensor := &inject.MovementSensor{}
	movementSensor.PropertiesFunc = func(ctx context.Context, extra map[string]interface{}) (*movementsensor.Properties, error) {
		return &movementsensor.Properties{}, errors.New("error getting properties")
	}
	return movementSensor
}
