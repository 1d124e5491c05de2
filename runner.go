package viamnavtest

import (
	"context"
	"math/rand"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"github.com/viam-modules/viam-navtest/config"
	"github.com/viam-modules/viam-navtest/datalog"
	"github.com/viam-modules/viam-navtest/navigation"
	"github.com/viam-modules/viam-navtest/placement"
	"github.com/viam-modules/viam-navtest/report"
	"github.com/viam-modules/viam-navtest/sensors"
	"github.com/viam-modules/viam-navtest/simulator"
	"github.com/viam-modules/viam-navtest/verify"
)

// Attachment names added to every report at tear down.
const (
	// CheckpointAttachment lists the recorded checkpoint directories.
	CheckpointAttachment = "Checkpoints"
	// PositionAttachment holds the last reading of the position listener, when it took one.
	PositionAttachment = "Position"
)

var (
	// ErrNoSimulator denotes that a runner was built without a simulator.
	ErrNoSimulator = errors.New("a simulator is required to run a scenario")
	// ErrNoNavigator denotes that a runner was built without a navigator.
	ErrNoNavigator = errors.New("a navigator is required to run a scenario")
)

// Runner runs navigation scenarios against a simulator.
type Runner struct {
	Params    config.Params
	Simulator simulator.Simulator
	Navigator navigation.Navigator
	// Listener is optional. Without it the location check is skipped.
	Listener sensors.PoseListener
	// History is optional. When set every run is saved to it.
	History *report.HistoryStore
	Logger  logging.Logger
}

// NewRunner returns a runner for params.
func NewRunner(
	params config.Params,
	sim simulator.Simulator,
	nav navigation.Navigator,
	listener sensors.PoseListener,
	logger logging.Logger,
) *Runner {
	return &Runner{
		Params:    params,
		Simulator: sim,
		Navigator: nav,
		Listener:  listener,
		Logger:    logger,
	}
}

// stepFunc runs the body of a step.
type stepFunc func(ctx context.Context, sc *ScenarioContext) error

// requirement returns a non-nil error when a step cannot run.
type requirement func(sc *ScenarioContext) error

func passed(step string) requirement {
	return func(sc *ScenarioContext) error {
		result, ok := sc.Report.Step(step)
		if !ok || result.Status != report.StatusPassed {
			return errors.Errorf("%s did not pass", step)
		}
		return nil
	}
}

func recorded(checkpoint string) requirement {
	return func(sc *ScenarioContext) error {
		if !sc.Recorded(checkpoint) {
			return errors.Errorf("checkpoint %s was not recorded", checkpoint)
		}
		return nil
	}
}

func (r *Runner) placer(rng *rand.Rand) *placement.Config {
	return &placement.Config{
		Rand:      rng,
		Area:      placement.Range{Min: r.Params.ObstacleMin, Max: r.Params.ObstacleMax},
		Types:     r.Params.AllowedObstacleTypes,
		Z:         r.Params.ObstacleZ,
		Retries:   r.Params.PlacementRetries,
		RandomYaw: r.Params.RandomYaw,
		Logger:    r.Logger,
	}
}

// Run runs one scenario and returns its report. Tear down always runs once set up has started.
// The returned error is only set for problems outside the scenario: an invalid configuration, in
// which case nothing was spawned and no report is returned, or a report that could not be saved.
func (r *Runner) Run(ctx context.Context) (rep *report.Report, err error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::Runner::Run")
	defer span.End()

	if r.Simulator == nil {
		return nil, ErrNoSimulator
	}
	if r.Navigator == nil {
		return nil, ErrNoNavigator
	}
	if r.Params.NumOfObstacles < 0 {
		return nil, placement.ErrNegativeCount
	}
	rng := rand.New(rand.NewSource(r.Params.Seed)) //nolint:gosec
	placer := r.placer(rng)
	if err := placer.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid scenario configuration")
	}

	sc := NewScenarioContext(r.Params.Seed)
	rep = sc.Report
	logDir := filepath.Join(r.Params.LogDir, rep.RunID.String())
	recorder := &datalog.Recorder{
		Dir:            logDir,
		Simulator:      r.Simulator,
		Robot:          r.Params.RobotModelName,
		ReferenceFrame: r.Params.ReferenceFrame,
		Logger:         r.Logger,
	}
	reader := datalog.Reader{Dir: logDir}
	band := verify.Band{Tolerance: r.Params.Tolerance}

	r.Logger.Infow("starting navigation scenario", "run_id", rep.RunID.String(), "seed", r.Params.Seed)

	defer func() {
		// tear down and persistence run even when ctx was cancelled
		r.step(context.WithoutCancel(ctx), sc, StepTearDown, nil, func(ctx context.Context, sc *ScenarioContext) error {
			return r.tearDown(ctx, sc, logDir)
		})
		sc.Clear()
		rep.Finished = time.Now().UTC()
		r.Logger.Infow("scenario finished", "run_id", rep.RunID.String(), "passed", rep.Passed())
		r.Logger.Debug("\n" + rep.Table())
		if persistErr := r.persist(context.WithoutCancel(ctx), rep); persistErr != nil {
			err = multierr.Combine(err, persistErr)
		}
	}()

	r.step(ctx, sc, StepSetUp, nil, func(ctx context.Context, sc *ScenarioContext) error {
		records, err := placer.Place(r.Params.NumOfObstacles, sc.Used)
		if err != nil {
			return err
		}
		sc.Records = records
		spawner := &placement.Spawner{
			Simulator:      r.Simulator,
			ModelDir:       r.Params.ModelDirectory,
			Namespace:      r.Params.Namespace,
			ReferenceFrame: r.Params.ReferenceFrame,
			Logger:         r.Logger,
		}
		sc.Spawned = spawner.SpawnAll(ctx, records)
		r.Logger.Infow("obstacles set up", "placed", len(records), "spawned", len(sc.Spawned))
		return nil
	})

	r.step(ctx, sc, StepVerificationOfNavigation, []requirement{passed(StepSetUp)},
		func(ctx context.Context, sc *ScenarioContext) error {
			dest := navigation.RandomDestination(rng, r.Params.DestinationMin, r.Params.DestinationMax)
			sc.Destination = &dest
			r.Logger.Infow("navigating", "x", dest.X, "y", dest.Y, "heading", dest.Heading)

			if err := recorder.Record(ctx, CheckpointNavStart, sc.Spawned); err != nil {
				return err
			}
			sc.Checkpoints = append(sc.Checkpoints, CheckpointNavStart)

			reached, navErr := r.Navigator.NavigateTo(ctx, dest)
			if err := recorder.Record(ctx, CheckpointNavEnd, sc.Spawned); err != nil {
				return multierr.Combine(navErr, err)
			}
			sc.Checkpoints = append(sc.Checkpoints, CheckpointNavEnd)

			if navErr != nil {
				return navErr
			}
			if !reached {
				return errors.Errorf("navigation did not reach (%v, %v)", dest.X, dest.Y)
			}
			return nil
		})

	r.step(ctx, sc, StepCollisionDetection, []requirement{recorded(CheckpointNavStart), recorded(CheckpointNavEnd)},
		func(ctx context.Context, sc *ScenarioContext) error {
			var errs error
			for _, axis := range datalog.Axes {
				before, after, err := reader.Compare(axis, CheckpointNavStart, CheckpointNavEnd)
				if err != nil {
					return err
				}
				errs = multierr.Append(errs, verify.CollisionFree(string(axis), before, after))
			}
			return errs
		})

	r.step(ctx, sc, StepLocationVerification, []requirement{recorded(CheckpointNavEnd), r.hasListener},
		func(ctx context.Context, sc *ScenarioContext) error {
			ref, err := reader.Robot(CheckpointNavEnd)
			if err != nil {
				return err
			}
			observed, err := r.Listener.Pose(ctx)
			if err != nil {
				return errors.Wrapf(err, "error reading position of %s", r.Listener.Name())
			}
			return verify.Location(observed.Point(), samplePoint(ref), band)
		})

	r.step(ctx, sc, StepDestinationVerification, []requirement{passed(StepVerificationOfNavigation)},
		func(ctx context.Context, sc *ScenarioContext) error {
			ref, err := reader.Robot(CheckpointNavEnd)
			if err != nil {
				return err
			}
			return verify.Destination(samplePoint(ref), sc.Destination.Point(), band)
		})

	r.step(ctx, sc, StepOperationZoneVerification, []requirement{recorded(CheckpointNavEnd)},
		func(ctx context.Context, sc *ScenarioContext) error {
			ref, err := reader.Robot(CheckpointNavEnd)
			if err != nil {
				return err
			}
			points := []verify.NamedPoint{{Name: "ground truth of " + ref.Model, Point: samplePoint(ref)}}
			if r.Listener != nil {
				observed, err := r.Listener.Pose(ctx)
				if err != nil {
					return errors.Wrapf(err, "error reading position of %s", r.Listener.Name())
				}
				points = append(points, verify.NamedPoint{Name: "position reported by " + r.Listener.Name(), Point: observed.Point()})
			}
			return verify.OperationalZone(verify.Boundary{Limit: r.Params.Boundary}, points...)
		})

	return rep, nil
}

func (r *Runner) hasListener(sc *ScenarioContext) error {
	if r.Listener == nil {
		return errors.New("no position listener configured")
	}
	return nil
}

// step runs fn as the step called name unless a requirement is not met, and records the outcome.
func (r *Runner) step(ctx context.Context, sc *ScenarioContext, name string, requires []requirement, fn stepFunc) {
	for _, req := range requires {
		if err := req(sc); err != nil {
			r.Logger.Warnw("skipping step", "step", name, "reason", err)
			sc.Report.Add(name, report.StatusSkipped, err, 0)
			return
		}
	}

	ctx, span := trace.StartSpan(ctx, "viamnavtest::step::"+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx, sc)
	duration := time.Since(start)
	if err != nil {
		r.Logger.Errorw("step failed", "step", name, "error", err)
		sc.Report.Add(name, report.StatusFailed, err, duration)
		return
	}
	r.Logger.Infow("step passed", "step", name, "duration", report.FormatDuration(duration))
	sc.Report.Add(name, report.StatusPassed, nil, duration)
}

// tearDown deletes every spawned obstacle, checks the world for leftovers and attaches the configuration.
func (r *Runner) tearDown(ctx context.Context, sc *ScenarioContext, logDir string) error {
	_, deleteErr := placement.DeleteAll(ctx, r.Simulator, sc.Spawned, r.Logger)

	var leakErr error
	leaked, err := placement.LeakCheck(ctx, r.Simulator, sc.Spawned, r.Logger)
	switch {
	case err != nil:
		leakErr = errors.Wrap(err, "error checking the world for leftover obstacles")
	case len(leaked) > 0:
		leakErr = errors.Errorf("obstacles left in the world: %s", strings.Join(leaked, ", "))
	}

	checkpoints := make([][]string, 0, len(sc.Checkpoints))
	for _, c := range sc.Checkpoints {
		checkpoints = append(checkpoints, []string{c, filepath.Join(logDir, c)})
	}
	attachErr := multierr.Combine(
		sc.Report.AttachRows(report.ConfigurationAttachment, r.Params.Rows()),
		sc.Report.AttachRows(CheckpointAttachment, checkpoints),
	)
	if r.Listener != nil {
		if latest, ok := r.Listener.Latest(); ok {
			attachErr = multierr.Append(attachErr, sc.Report.AttachRows(PositionAttachment, positionRows(r.Listener.Name(), latest)))
		}
	}
	return multierr.Combine(deleteErr, leakErr, attachErr)
}

// persist writes the report to the report directory and, when configured, to the run history.
func (r *Runner) persist(ctx context.Context, rep *report.Report) error {
	runDir, err := rep.WriteDir(r.Params.ReportDir)
	if err != nil {
		return err
	}
	r.Logger.Infow("report written", "dir", runDir, "passed", rep.Passed())

	if r.History == nil {
		return nil
	}
	return errors.Wrapf(r.History.SaveRun(ctx, rep), "error saving run %s to history", rep.RunID)
}

func positionRows(name string, p sensors.Pose) [][]string {
	ftoa := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	return [][]string{
		{"listener", name},
		{"x", ftoa(p.X)},
		{"y", ftoa(p.Y)},
		{"z", ftoa(p.Z)},
		{"reading_time", p.ReadingTime.Format(time.RFC3339Nano)},
	}
}

func samplePoint(s datalog.Sample) r3.Vector {
	return r3.Vector{X: s.X, Y: s.Y, Z: s.Z}
}
