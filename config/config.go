// Package config implements functions to assist with attribute evaluation in the navigation test service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
	"gopkg.in/yaml.v3"
)

// Defaults of the optional parameters.
const (
	DefaultNumOfObstacles     = 5
	DefaultObstacleMin        = -3
	DefaultObstacleMax        = 3
	DefaultObstacleZ          = 0.02
	DefaultDestinationMin     = -2
	DefaultDestinationMax     = 2
	DefaultTolerance          = 0.45
	DefaultBoundary           = 5.0
	DefaultLogDir             = "navtest_logs"
	DefaultReportDir          = "navtest_reports"
	DefaultRobotModelName     = "hsrb"
	DefaultNamespace          = "/RSG"
	DefaultReferenceFrame     = "world"
	DefaultNavigationPollMsec = 500

	typeSeparator = ","
)

// newError returns an error specific to a failure in the navigation test config.
func newError(configError string) error {
	return errors.Errorf("navigation test configuration error: %s", configError)
}

// Config describes how to configure a navigation test run.
type Config struct {
	NumOfObstacles       *int     `json:"num_of_obstacles" yaml:"num_of_obstacles"`
	AllowedObstacleTypes string   `json:"allowed_obstacle_types" yaml:"allowed_obstacle_types"`
	ModelDirectory       string   `json:"model_directory" yaml:"model_directory"`
	Seed                 *int64   `json:"seed" yaml:"seed"`
	ObstacleMin          *int     `json:"obstacle_min" yaml:"obstacle_min"`
	ObstacleMax          *int     `json:"obstacle_max" yaml:"obstacle_max"`
	ObstacleZ            *float64 `json:"obstacle_z" yaml:"obstacle_z"`
	PlacementRetries     int      `json:"placement_retries" yaml:"placement_retries"`
	RandomYaw            bool     `json:"random_yaw" yaml:"random_yaw"`
	DestinationMin       *int     `json:"destination_min" yaml:"destination_min"`
	DestinationMax       *int     `json:"destination_max" yaml:"destination_max"`
	Tolerance            *float64 `json:"tolerance" yaml:"tolerance"`
	Boundary             *float64 `json:"boundary" yaml:"boundary"`
	LogDir               string   `json:"log_dir" yaml:"log_dir"`
	ReportDir            string   `json:"report_dir" yaml:"report_dir"`
	HistoryDB            string   `json:"history_db" yaml:"history_db"`
	RobotModelName       string   `json:"robot_model_name" yaml:"robot_model_name"`
	Namespace            string   `json:"namespace" yaml:"namespace"`
	ReferenceFrame       string   `json:"reference_frame" yaml:"reference_frame"`
	Simulator            string   `json:"simulator" yaml:"simulator"`
	MotionService        string   `json:"motion_service" yaml:"motion_service"`
	Base                 string   `json:"base" yaml:"base"`
	Slam                 string   `json:"slam" yaml:"slam"`
	MovementSensor       string   `json:"movement_sensor" yaml:"movement_sensor"`
	OriginLat            float64  `json:"origin_lat" yaml:"origin_lat"`
	OriginLng            float64  `json:"origin_lng" yaml:"origin_lng"`
	NavigationPollMsec   int      `json:"navigation_poll_msec" yaml:"navigation_poll_msec"`
}

// Load reads a YAML config file.
func Load(path string) (*Config, error) {
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading config %s", path)
	}
	var config Config
	if err := yaml.Unmarshal(b, &config); err != nil {
		return nil, newError(err.Error())
	}
	return &config, nil
}

// AllowedTypes returns the trimmed, non-empty obstacle types of allowed_obstacle_types.
func (config *Config) AllowedTypes() []string {
	types := lo.Map(strings.Split(config.AllowedObstacleTypes, typeSeparator), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Uniq(lo.Compact(types))
}

// Validate creates the list of implicit dependencies of the scenario-runner service, which drives the
// robot through a motion service.
func (config *Config) Validate(path string) ([]string, error) {
	if config.MotionService == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "motion_service")
	}
	return config.ValidateScenario(path)
}

// ValidateScenario checks the scenario parameters and returns the resources they name. Unlike Validate it
// does not need a motion service, so configs for dry runs pass.
func (config *Config) ValidateScenario(path string) ([]string, error) {
	if config.Simulator == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "simulator")
	}

	if config.ModelDirectory == "" {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "model_directory")
	}

	if len(config.AllowedTypes()) == 0 {
		return nil, utils.NewConfigValidationFieldRequiredError(path, "allowed_obstacle_types")
	}

	if config.NumOfObstacles != nil && *config.NumOfObstacles < 0 {
		return nil, errors.New("cannot specify num_of_obstacles less than zero")
	}

	if config.PlacementRetries < 0 {
		return nil, errors.New("cannot specify placement_retries less than zero")
	}

	if config.NavigationPollMsec < 0 {
		return nil, errors.New("cannot specify navigation_poll_msec less than zero")
	}

	if config.Tolerance != nil && *config.Tolerance <= 0 {
		return nil, errors.New("tolerance must be greater than zero")
	}

	if config.Boundary != nil && *config.Boundary <= 0 {
		return nil, errors.New("boundary must be greater than zero")
	}

	if lo.FromPtrOr(config.ObstacleMin, DefaultObstacleMin) > lo.FromPtrOr(config.ObstacleMax, DefaultObstacleMax) {
		return nil, errors.New("obstacle_min cannot be greater than obstacle_max")
	}

	if lo.FromPtrOr(config.DestinationMin, DefaultDestinationMin) > lo.FromPtrOr(config.DestinationMax, DefaultDestinationMax) {
		return nil, errors.New("destination_min cannot be greater than destination_max")
	}

	deps := []string{config.Simulator}
	if config.MotionService != "" {
		if config.Base == "" {
			return nil, utils.NewConfigValidationFieldRequiredError(path, "base")
		}
		if config.Slam == "" {
			return nil, utils.NewConfigValidationFieldRequiredError(path, "slam")
		}
		deps = append(deps, config.MotionService)
	}
	if config.MovementSensor != "" {
		deps = append(deps, config.MovementSensor)
	}

	return deps, nil
}

// Params are the effective parameters of a run, with every optional parameter resolved.
type Params struct {
	NumOfObstacles       int
	AllowedObstacleTypes []string
	ModelDirectory       string
	Seed                 int64
	ObstacleMin          int
	ObstacleMax          int
	ObstacleZ            float64
	PlacementRetries     int
	RandomYaw            bool
	DestinationMin       int
	DestinationMax       int
	Tolerance            float64
	Boundary             float64
	LogDir               string
	ReportDir            string
	HistoryDB            string
	RobotModelName       string
	Namespace            string
	ReferenceFrame       string
	Simulator            string
	MotionService        string
	Base                 string
	Slam                 string
	MovementSensor       string
	OriginLat            float64
	OriginLng            float64
	NavigationPoll       time.Duration
}

// GetOptionalParameters sets any unset optional config parameters to their defaults and returns the
// effective parameters. An unset seed is taken from the clock and logged so the run can be replayed.
func GetOptionalParameters(config *Config, logger logging.Logger) Params {
	params := Params{
		AllowedObstacleTypes: config.AllowedTypes(),
		ModelDirectory:       config.ModelDirectory,
		PlacementRetries:     config.PlacementRetries,
		RandomYaw:            config.RandomYaw,
		HistoryDB:            config.HistoryDB,
		Simulator:            config.Simulator,
		MotionService:        config.MotionService,
		Base:                 config.Base,
		Slam:                 config.Slam,
		MovementSensor:       config.MovementSensor,
		OriginLat:            config.OriginLat,
		OriginLng:            config.OriginLng,
	}

	if config.NumOfObstacles == nil {
		logger.Debugf("no num_of_obstacles given, setting to default value of %d", DefaultNumOfObstacles)
		params.NumOfObstacles = DefaultNumOfObstacles
	} else {
		params.NumOfObstacles = *config.NumOfObstacles
	}

	if config.Seed == nil {
		params.Seed = time.Now().UnixNano()
		logger.Infof("no seed given, using seed %d", params.Seed)
	} else {
		params.Seed = *config.Seed
	}

	params.ObstacleMin = lo.FromPtrOr(config.ObstacleMin, DefaultObstacleMin)
	params.ObstacleMax = lo.FromPtrOr(config.ObstacleMax, DefaultObstacleMax)
	params.DestinationMin = lo.FromPtrOr(config.DestinationMin, DefaultDestinationMin)
	params.DestinationMax = lo.FromPtrOr(config.DestinationMax, DefaultDestinationMax)

	if config.ObstacleZ == nil {
		logger.Debugf("no obstacle_z given, setting to default value of %v", DefaultObstacleZ)
	}
	params.ObstacleZ = lo.FromPtrOr(config.ObstacleZ, DefaultObstacleZ)

	if config.Tolerance == nil {
		logger.Debugf("no tolerance given, setting to default value of %v", DefaultTolerance)
	}
	params.Tolerance = lo.FromPtrOr(config.Tolerance, DefaultTolerance)

	if config.Boundary == nil {
		logger.Debugf("no boundary given, setting to default value of %v", DefaultBoundary)
	}
	params.Boundary = lo.FromPtrOr(config.Boundary, DefaultBoundary)

	params.LogDir = lo.Ternary(config.LogDir == "", DefaultLogDir, config.LogDir)
	params.ReportDir = lo.Ternary(config.ReportDir == "", DefaultReportDir, config.ReportDir)
	params.RobotModelName = lo.Ternary(config.RobotModelName == "", DefaultRobotModelName, config.RobotModelName)
	params.Namespace = lo.Ternary(config.Namespace == "", DefaultNamespace, config.Namespace)
	params.ReferenceFrame = lo.Ternary(config.ReferenceFrame == "", DefaultReferenceFrame, config.ReferenceFrame)

	pollMsec := config.NavigationPollMsec
	if pollMsec == 0 {
		logger.Debugf("no navigation_poll_msec given, setting to default value of %d", DefaultNavigationPollMsec)
		pollMsec = DefaultNavigationPollMsec
	}
	params.NavigationPoll = time.Duration(pollMsec) * time.Millisecond

	return params
}

// Rows returns the parameters as [name, value] rows, in a fixed order.
func (p Params) Rows() [][]string {
	itoa := strconv.Itoa
	ftoa := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return [][]string{
		{"num_of_obstacles", itoa(p.NumOfObstacles)},
		{"allowed_obstacle_types", strings.Join(p.AllowedObstacleTypes, typeSeparator)},
		{"model_directory", p.ModelDirectory},
		{"seed", strconv.FormatInt(p.Seed, 10)},
		{"obstacle_min", itoa(p.ObstacleMin)},
		{"obstacle_max", itoa(p.ObstacleMax)},
		{"obstacle_z", ftoa(p.ObstacleZ)},
		{"placement_retries", itoa(p.PlacementRetries)},
		{"random_yaw", strconv.FormatBool(p.RandomYaw)},
		{"destination_min", itoa(p.DestinationMin)},
		{"destination_max", itoa(p.DestinationMax)},
		{"tolerance", ftoa(p.Tolerance)},
		{"boundary", ftoa(p.Boundary)},
		{"log_dir", p.LogDir},
		{"report_dir", p.ReportDir},
		{"history_db", p.HistoryDB},
		{"robot_model_name", p.RobotModelName},
		{"namespace", p.Namespace},
		{"reference_frame", p.ReferenceFrame},
		{"simulator", p.Simulator},
		{"motion_service", p.MotionService},
		{"base", p.Base},
		{"slam", p.Slam},
		{"movement_sensor", p.MovementSensor},
		{"origin_lat", ftoa(p.OriginLat)},
		{"origin_lng", ftoa(p.OriginLng)},
		{"navigation_poll_msec", strconv.FormatInt(p.NavigationPoll.Milliseconds(), 10)},
	}
}
