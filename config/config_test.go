package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/test"
	"go.viam.com/utils"
)

const testCfgPath = "services.navtest.attributes.fake"

// makeCfgService creates the simplest possible config that can pass validation.
func makeCfgService() resource.Config {
	model := resource.DefaultModelFamily.WithModel("test")
	cfgService := resource.Config{Name: "test", API: generic.API, Model: model}
	cfgService.Attributes = map[string]interface{}{
		"simulator":              "gazebo",
		"model_directory":        "models",
		"allowed_obstacle_types": "box,cylinder",
		"motion_service":         "builtin",
		"base":                   "hsrb_base",
		"slam":                   "slam",
	}
	return cfgService
}

func newConfig(conf resource.Config) (*Config, []string, error) {
	navConf, err := resource.TransformAttributeMap[*Config](conf.Attributes)
	if err != nil {
		return &Config{}, nil, newError(err.Error())
	}

	deps, err := navConf.Validate(testCfgPath)
	if err != nil {
		return &Config{}, nil, newError(err.Error())
	}

	return navConf, deps, nil
}

func TestValidate(t *testing.T) {
	t.Run("Simplest valid config", func(t *testing.T) {
		cfg, deps, err := newConfig(makeCfgService())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, deps, test.ShouldResemble, []string{"gazebo", "builtin"})
		test.That(t, cfg.AllowedTypes(), test.ShouldResemble, []string{"box", "cylinder"})
	})

	t.Run("Config without required fields", func(t *testing.T) {
		for _, requiredField := range []string{"motion_service", "simulator", "model_directory", "allowed_obstacle_types"} {
			cfgService := makeCfgService()
			delete(cfgService.Attributes, requiredField)
			_, _, err := newConfig(cfgService)
			expected := newError(utils.NewConfigValidationFieldRequiredError(testCfgPath, requiredField).Error())
			test.That(t, err, test.ShouldBeError, expected)
		}
	})

	t.Run("Config with only separators as obstacle types", func(t *testing.T) {
		cfgService := makeCfgService()
		cfgService.Attributes["allowed_obstacle_types"] = " , ,"
		_, _, err := newConfig(cfgService)
		test.That(t, err, test.ShouldBeError,
			newError(utils.NewConfigValidationFieldRequiredError(testCfgPath, "allowed_obstacle_types").Error()))
	})

	t.Run("Config with invalid parameter type", func(t *testing.T) {
		key := "model_directory"

		cfgService := makeCfgService()
		cfgService.Attributes[key] = true

		_, _, err := newConfig(cfgService)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, fmt.Sprintf("'%s' expected type 'string'", key))

		cfgService.Attributes[key] = "true"
		_, _, err = newConfig(cfgService)
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("Config with out of range values", func(t *testing.T) {
		cases := []struct {
			key   string
			value interface{}
			msg   string
		}{
			{"num_of_obstacles", -1, "cannot specify num_of_obstacles less than zero"},
			{"placement_retries", -1, "cannot specify placement_retries less than zero"},
			{"navigation_poll_msec", -1, "cannot specify navigation_poll_msec less than zero"},
			{"tolerance", 0, "tolerance must be greater than zero"},
			{"boundary", -5, "boundary must be greater than zero"},
			{"obstacle_min", 4, "obstacle_min cannot be greater than obstacle_max"},
			{"destination_max", -3, "destination_min cannot be greater than destination_max"},
		}
		for _, c := range cases {
			cfgService := makeCfgService()
			cfgService.Attributes[c.key] = c.value
			_, _, err := newConfig(cfgService)
			test.That(t, err, test.ShouldBeError, newError(c.msg))
		}
	})

	t.Run("Motion service requires a base and a slam service", func(t *testing.T) {
		cfgService := makeCfgService()
		delete(cfgService.Attributes, "base")
		delete(cfgService.Attributes, "slam")
		_, _, err := newConfig(cfgService)
		test.That(t, err, test.ShouldBeError, newError(utils.NewConfigValidationFieldRequiredError(testCfgPath, "base").Error()))

		cfgService.Attributes["base"] = "hsrb_base"
		_, _, err = newConfig(cfgService)
		test.That(t, err, test.ShouldBeError, newError(utils.NewConfigValidationFieldRequiredError(testCfgPath, "slam").Error()))

		cfgService.Attributes["slam"] = "slam"
		cfgService.Attributes["movement_sensor"] = "odometry"
		_, deps, err := newConfig(cfgService)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, deps, test.ShouldResemble, []string{"gazebo", "builtin", "odometry"})
	})
}

func TestValidateScenario(t *testing.T) {
	t.Run("a scenario without a motion service is valid", func(t *testing.T) {
		cfg := &Config{Simulator: "gazebo", ModelDirectory: "models", AllowedObstacleTypes: "box"}
		deps, err := cfg.ValidateScenario(testCfgPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, deps, test.ShouldResemble, []string{"gazebo"})

		_, err = cfg.Validate(testCfgPath)
		test.That(t, err, test.ShouldBeError, utils.NewConfigValidationFieldRequiredError(testCfgPath, "motion_service"))
	})

	t.Run("scenario parameters are still checked", func(t *testing.T) {
		cfg := &Config{Simulator: "gazebo", AllowedObstacleTypes: "box"}
		_, err := cfg.ValidateScenario(testCfgPath)
		test.That(t, err, test.ShouldBeError, utils.NewConfigValidationFieldRequiredError(testCfgPath, "model_directory"))
	})
}

func TestAllowedTypes(t *testing.T) {
	cfg := &Config{AllowedObstacleTypes: " box, cylinder,,box ,sphere "}
	test.That(t, cfg.AllowedTypes(), test.ShouldResemble, []string{"box", "cylinder", "sphere"})
}

func TestGetOptionalParameters(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("Pass default parameters", func(t *testing.T) {
		cfg, _, err := newConfig(makeCfgService())
		test.That(t, err, test.ShouldBeNil)
		params := GetOptionalParameters(cfg, logger)
		test.That(t, params.NumOfObstacles, test.ShouldEqual, DefaultNumOfObstacles)
		test.That(t, params.ObstacleMin, test.ShouldEqual, -3)
		test.That(t, params.ObstacleMax, test.ShouldEqual, 3)
		test.That(t, params.ObstacleZ, test.ShouldEqual, 0.02)
		test.That(t, params.DestinationMin, test.ShouldEqual, -2)
		test.That(t, params.DestinationMax, test.ShouldEqual, 2)
		test.That(t, params.Tolerance, test.ShouldEqual, 0.45)
		test.That(t, params.Boundary, test.ShouldEqual, 5.0)
		test.That(t, params.RobotModelName, test.ShouldEqual, "hsrb")
		test.That(t, params.Namespace, test.ShouldEqual, "/RSG")
		test.That(t, params.ReferenceFrame, test.ShouldEqual, "world")
		test.That(t, params.LogDir, test.ShouldEqual, DefaultLogDir)
		test.That(t, params.ReportDir, test.ShouldEqual, DefaultReportDir)
		test.That(t, params.NavigationPoll, test.ShouldEqual, 500*time.Millisecond)
		test.That(t, params.Seed, test.ShouldNotEqual, 0)
	})

	t.Run("Return overrides", func(t *testing.T) {
		cfgService := makeCfgService()
		cfgService.Attributes["num_of_obstacles"] = 0
		cfgService.Attributes["seed"] = 42
		cfgService.Attributes["tolerance"] = 0.3
		cfgService.Attributes["log_dir"] = "/tmp/logs"
		cfgService.Attributes["robot_model_name"] = "turtlebot"
		cfgService.Attributes["navigation_poll_msec"] = 20
		cfg, _, err := newConfig(cfgService)
		test.That(t, err, test.ShouldBeNil)
		params := GetOptionalParameters(cfg, logger)
		test.That(t, params.NumOfObstacles, test.ShouldEqual, 0)
		test.That(t, params.Seed, test.ShouldEqual, int64(42))
		test.That(t, params.Tolerance, test.ShouldEqual, 0.3)
		test.That(t, params.LogDir, test.ShouldEqual, "/tmp/logs")
		test.That(t, params.RobotModelName, test.ShouldEqual, "turtlebot")
		test.That(t, params.NavigationPoll, test.ShouldEqual, 20*time.Millisecond)
	})

	t.Run("Rows export every parameter", func(t *testing.T) {
		cfgService := makeCfgService()
		cfgService.Attributes["seed"] = 7
		cfg, _, err := newConfig(cfgService)
		test.That(t, err, test.ShouldBeNil)
		rows := GetOptionalParameters(cfg, logger).Rows()
		test.That(t, rows[0], test.ShouldResemble, []string{"num_of_obstacles", "5"})
		test.That(t, rows[1], test.ShouldResemble, []string{"allowed_obstacle_types", "box,cylinder"})
		test.That(t, rows[3], test.ShouldResemble, []string{"seed", "7"})
		test.That(t, rows[11], test.ShouldResemble, []string{"tolerance", "0.45"})
		for _, row := range rows {
			test.That(t, len(row), test.ShouldEqual, 2)
		}
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("reads a yaml config", func(t *testing.T) {
		path := filepath.Join(dir, "navtest.yaml")
		content := "simulator: gazebo\n" +
			"model_directory: ./models\n" +
			"allowed_obstacle_types: box, sphere\n" +
			"num_of_obstacles: 3\n" +
			"seed: 99\n" +
			"boundary: 4.5\n"
		test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)

		cfg, err := Load(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, *cfg.NumOfObstacles, test.ShouldEqual, 3)
		test.That(t, *cfg.Seed, test.ShouldEqual, int64(99))
		test.That(t, *cfg.Boundary, test.ShouldEqual, 4.5)
		test.That(t, cfg.AllowedTypes(), test.ShouldResemble, []string{"box", "sphere"})
		_, err = cfg.ValidateScenario("navtest.yaml")
		test.That(t, err, test.ShouldBeNil)
	})

	t.Run("returns an error for a missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.yaml"))
		test.That(t, err, test.ShouldNotBeNil)
	})

	t.Run("returns an error for malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		test.That(t, os.WriteFile(path, []byte("num_of_obstacles: [1, 2"), 0o600), test.ShouldBeNil)
		_, err := Load(path)
		test.That(t, err, test.ShouldNotBeNil)
	})
}
