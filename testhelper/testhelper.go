// Package testhelper provides fixtures shared by the navigation test suites.
package testhelper

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/viam-modules/viam-navtest/config"
	"github.com/viam-modules/viam-navtest/placement"
	"github.com/viam-modules/viam-navtest/simulator/fake"
)

const (
	// RobotName is the model name of the simulated robot.
	RobotName = config.DefaultRobotModelName
	// Seed is the seed fixtures run with unless a test overrides it.
	Seed = int64(42)
)

// ObstacleTypes are the obstacle models WriteModelDir provides.
var ObstacleTypes = []string{"box", "cylinder", "sphere"}

// WriteModelDir writes a minimal SDF description for each type into a temporary directory laid out
// the way the spawner expects and returns the directory.
func WriteModelDir(t *testing.T, types ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, modelType := range types {
		path := placement.ModelPath(dir, modelType)
		test.That(t, os.MkdirAll(filepath.Dir(path), 0o750), test.ShouldBeNil)
		sdf := fmt.Sprintf("<sdf version=\"1.6\"><model name=\"%s\"><static>true</static></model></sdf>", modelType)
		test.That(t, os.WriteFile(path, []byte(sdf), 0o600), test.ShouldBeNil)
	}
	return dir
}

// Config returns the simplest config that runs a scenario against the obstacle types of modelDir.
func Config(modelDir string) *config.Config {
	seed := Seed
	return &config.Config{
		AllowedObstacleTypes: "box,cylinder,sphere",
		ModelDirectory:       modelDir,
		Seed:                 &seed,
		Simulator:            "gazebo",
	}
}

// Params returns the effective parameters of Config with logs and reports under temporary directories.
func Params(t *testing.T, logger logging.Logger) config.Params {
	t.Helper()
	params := config.GetOptionalParameters(Config(WriteModelDir(t, ObstacleTypes...)), logger)
	params.LogDir = filepath.Join(t.TempDir(), "logs")
	params.ReportDir = filepath.Join(t.TempDir(), "reports")
	return params
}

// Robot is a fake world with a robot and the collaborators that drive and follow it.
type Robot struct {
	World     *fake.World
	Navigator *fake.Navigator
	Listener  *fake.Listener
}

// NewRobot returns a robot that reaches every destination exactly and reports its true position.
func NewRobot() *Robot {
	world := fake.NewWorld(RobotName)
	return &Robot{
		World:     world,
		Navigator: &fake.Navigator{World: world, Robot: RobotName},
		Listener:  &fake.Listener{World: world, Robot: RobotName},
	}
}
