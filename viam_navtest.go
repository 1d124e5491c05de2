// Package viamnavtest runs randomized navigation scenarios against a simulated robot.
package viamnavtest

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	viamgrpc "go.viam.com/rdk/grpc"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/rdk/services/motion"

	vnConfig "github.com/viam-modules/viam-navtest/config"
	"github.com/viam-modules/viam-navtest/navigation"
	"github.com/viam-modules/viam-navtest/report"
	"github.com/viam-modules/viam-navtest/sensors"
	"github.com/viam-modules/viam-navtest/simulator"
)

// Model is the model name of the scenario runner.
var (
	Model = resource.NewModel("viam", "navtest", "scenario-runner")
	// ErrClosed denotes that a method was called on a closed scenario runner.
	ErrClosed = errors.Errorf("resource (%s) is closed", Model.String())
	// ErrAlreadyRunning denotes that run_scenario was called while another scenario was running.
	ErrAlreadyRunning = errors.New("a scenario is already running")
	// ErrNoReport denotes that last_report was called before any scenario finished.
	ErrNoReport = errors.New("no scenario has run yet")
	// ErrNoMotionService denotes that the service was configured without a way to drive the robot.
	ErrNoMotionService = errors.New("motion_service is required to run scenarios")
	// ErrInvalidSeed denotes a run_scenario seed that is not an exact 64-bit integer.
	ErrInvalidSeed = errors.New("seed must be an integer, pass seeds above 2^53 as a decimal string")
)

// maxExactFloatSeed is the largest integer a float64 holds exactly.
const maxExactFloatSeed = 1 << 53

// DoCommand keys and commands.
const (
	CommandKey         = "command"
	SeedKey            = "seed"
	CommandRunScenario = "run_scenario"
	CommandLastReport  = "last_report"
)

const (
	sensorValidationMaxTimeout = 30 * time.Second
	sensorValidationInterval   = time.Second
)

func init() {
	resource.RegisterService(generic.API, Model, resource.Registration[resource.Resource, *vnConfig.Config]{
		Constructor: func(
			ctx context.Context,
			deps resource.Dependencies,
			c resource.Config,
			logger logging.Logger,
		) (resource.Resource, error) {
			return New(ctx, deps, c, logger)
		},
	})
}

// New returns a scenario runner wired to the simulator, motion service and movement sensor in deps.
func New(
	ctx context.Context,
	deps resource.Dependencies,
	c resource.Config,
	logger logging.Logger,
) (*NavTestService, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::NavTestService::New")
	defer span.End()

	svcConfig, err := resource.NativeConfig[*vnConfig.Config](c)
	if err != nil {
		return nil, err
	}
	params := vnConfig.GetOptionalParameters(svcConfig, logger)

	runner, err := NewRunnerFromDependencies(ctx, deps, params, logger)
	if err != nil {
		return nil, err
	}
	return newService(c.ResourceName().AsNamed(), params, svcConfig.Seed != nil,
		runner.Simulator, runner.Navigator, runner.Listener, logger), nil
}

// NewRunnerFromDependencies returns a runner driving the robot through the motion service in deps, with the
// simulator and, when configured, the movement sensor found in deps.
func NewRunnerFromDependencies(
	ctx context.Context,
	deps resource.Dependencies,
	params vnConfig.Params,
	logger logging.Logger,
) (*Runner, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::NewRunnerFromDependencies")
	defer span.End()

	if params.MotionService == "" {
		return nil, ErrNoMotionService
	}

	sim, err := simulator.NewBridgeFromDependencies(deps, params.Simulator, logger.Sublogger("simulator"))
	if err != nil {
		return nil, err
	}

	motionSvc, err := motion.FromDependencies(deps, params.MotionService)
	if err != nil {
		return nil, errors.Wrapf(err, "error getting motion service %q for navigation tests", params.MotionService)
	}
	nav := navigation.NewMotionNavigator(motionSvc, params.Base, params.Slam, params.NavigationPoll,
		logger.Sublogger("navigation"))

	var listener sensors.PoseListener
	if params.MovementSensor == "" {
		logger.Info("no movement sensor configured, proceeding without location verification")
	} else {
		msListener, err := sensors.NewMovementSensorListener(ctx, deps, params.MovementSensor,
			geo.NewPoint(params.OriginLat, params.OriginLng), logger.Sublogger("sensors"))
		if err != nil {
			return nil, err
		}
		if err := sensors.ValidateGetPose(ctx, msListener, sensorValidationMaxTimeout, sensorValidationInterval, logger); err != nil {
			return nil, errors.Wrap(err, "failed to get data from movement sensor")
		}
		listener = msListener
	}

	return NewRunner(params, sim, nav, listener, logger), nil
}

func newService(
	named resource.Named,
	params vnConfig.Params,
	seedFixed bool,
	sim simulator.Simulator,
	nav navigation.Navigator,
	listener sensors.PoseListener,
	logger logging.Logger,
) *NavTestService {
	svc := &NavTestService{
		Named:     named,
		params:    params,
		seedFixed: seedFixed,
		simulator: sim,
		navigator: nav,
		listener:  listener,
		logger:    logger,
	}
	if params.HistoryDB != "" {
		svc.history = report.NewHistoryStore(params.HistoryDB)
	}
	return svc
}

// NavTestService is a generic service that runs a navigation scenario on request.
type NavTestService struct {
	resource.Named
	resource.AlwaysRebuild

	runMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	lastReport *report.Report

	params    vnConfig.Params
	seedFixed bool
	simulator simulator.Simulator
	navigator navigation.Navigator
	listener  sensors.PoseListener
	history   *report.HistoryStore
	logger    logging.Logger
}

// DoCommand runs a scenario with {"command": "run_scenario"} and returns the last summary with
// {"command": "last_report"}. run_scenario takes an optional "seed".
func (svc *NavTestService) DoCommand(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	svc.mu.Lock()
	closed := svc.closed
	svc.mu.Unlock()
	if closed {
		svc.logger.Warn("DoCommand called after closed")
		return nil, ErrClosed
	}

	command, _ := req[CommandKey].(string)
	switch command {
	case CommandRunScenario:
		return svc.runScenario(ctx, req)
	case CommandLastReport:
		svc.mu.Lock()
		defer svc.mu.Unlock()
		if svc.lastReport == nil {
			return nil, ErrNoReport
		}
		return svc.lastReport.Summary(), nil
	default:
		return nil, viamgrpc.UnimplementedError
	}
}

func (svc *NavTestService) runScenario(ctx context.Context, req map[string]interface{}) (map[string]interface{}, error) {
	if !svc.runMu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer svc.runMu.Unlock()

	params := svc.params
	seed, ok, err := parseSeed(req[SeedKey])
	switch {
	case err != nil:
		return nil, err
	case ok:
		params.Seed = seed
	case !svc.seedFixed:
		params.Seed = time.Now().UnixNano()
	}

	runner := NewRunner(params, svc.simulator, svc.navigator, svc.listener, svc.logger)
	runner.History = svc.history
	rep, err := runner.Run(ctx)
	if rep != nil {
		svc.mu.Lock()
		svc.lastReport = rep
		svc.mu.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return rep.Summary(), nil
}

// parseSeed reads a run_scenario seed. Summaries report seeds as decimal strings so that they can be
// passed back unchanged; numbers are accepted only while a float64 holds them exactly.
func parseSeed(v interface{}) (int64, bool, error) {
	switch seed := v.(type) {
	case nil:
		return 0, false, nil
	case string:
		parsed, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return 0, false, errors.Wrapf(ErrInvalidSeed, "%q", seed)
		}
		return parsed, true, nil
	case float64:
		if seed != math.Trunc(seed) || math.Abs(seed) > maxExactFloatSeed {
			return 0, false, errors.Wrapf(ErrInvalidSeed, "%v", seed)
		}
		return int64(seed), true, nil
	case int:
		return int64(seed), true, nil
	case int64:
		return seed, true, nil
	default:
		return 0, false, errors.Wrapf(ErrInvalidSeed, "unsupported type %T", v)
	}
}

// Close waits for a running scenario to finish tearing down and closes the run history.
func (svc *NavTestService) Close(ctx context.Context) error {
	svc.runMu.Lock()
	defer svc.runMu.Unlock()
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.closed {
		svc.logger.Warn("Close() called multiple times")
		return nil
	}
	svc.closed = true
	if svc.history != nil {
		return svc.history.Close()
	}
	return nil
}
