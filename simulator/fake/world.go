// Package fake provides an in-memory simulated world and the robot collaborators that act on it.
package fake

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/viam-modules/viam-navtest/navigation"
	"github.com/viam-modules/viam-navtest/sensors"
	"github.com/viam-modules/viam-navtest/simulator"
)

// World is an in-memory simulator holding model poses. It is safe for concurrent use.
type World struct {
	mu      sync.Mutex
	models  map[string]simulator.Pose
	static  map[string]bool
	simTime float64

	// SpawnErr, when set, is consulted before every spawn.
	SpawnErr func(req simulator.SpawnRequest) error
	// DeleteErr, when set, is consulted before every delete.
	DeleteErr func(name string) error
}

// NewWorld returns a world holding the robot at the origin.
func NewWorld(robot string) *World {
	return &World{
		models: map[string]simulator.Pose{robot: simulator.IdentityPose()},
		static: map[string]bool{},
	}
}

// SpawnModel inserts a model.
func (w *World) SpawnModel(ctx context.Context, req simulator.SpawnRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if w.SpawnErr != nil {
		if err := w.SpawnErr(req); err != nil {
			return err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.models[req.ModelName]; ok {
		return errors.Wrapf(simulator.ErrModelExists, "%q", req.ModelName)
	}
	w.models[req.ModelName] = req.InitialPose
	w.static[req.ModelName] = true
	w.simTime += 0.001
	return nil
}

// DeleteModel removes a model.
func (w *World) DeleteModel(ctx context.Context, req simulator.DeleteRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if w.DeleteErr != nil {
		if err := w.DeleteErr(req.ModelName); err != nil {
			return err
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.models[req.ModelName]; !ok {
		return errors.Wrapf(simulator.ErrModelNotFound, "%q", req.ModelName)
	}
	delete(w.models, req.ModelName)
	delete(w.static, req.ModelName)
	return nil
}

// GetModelState returns the pose of a model. Every frame is treated as the world frame.
func (w *World) GetModelState(ctx context.Context, req simulator.ModelStateRequest) (simulator.ModelState, error) {
	if err := req.Validate(); err != nil {
		return simulator.ModelState{}, err
	}
	pose, ok := w.Pose(req.ModelName)
	if !ok {
		return simulator.ModelState{}, errors.Wrapf(simulator.ErrModelNotFound, "%q", req.ModelName)
	}
	return simulator.ModelState{Pose: pose}, nil
}

// GetWorldProperties returns the sorted model names.
func (w *World) GetWorldProperties(ctx context.Context) (simulator.WorldProperties, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	names := make([]string, 0, len(w.models))
	for name := range w.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return simulator.WorldProperties{SimTime: w.simTime, ModelNames: names}, nil
}

// GetModelProperties returns the properties of a model.
func (w *World) GetModelProperties(ctx context.Context, modelName string) (simulator.ModelProperties, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.models[modelName]; !ok {
		return simulator.ModelProperties{}, errors.Wrapf(simulator.ErrModelNotFound, "%q", modelName)
	}
	return simulator.ModelProperties{
		CanonicalBodyName: "link",
		BodyNames:         []string{"link"},
		IsStatic:          w.static[modelName],
	}, nil
}

// Pose returns the pose of a model and whether it exists.
func (w *World) Pose(name string) (simulator.Pose, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pose, ok := w.models[name]
	return pose, ok
}

// Place moves a model to a position, keeping its orientation.
func (w *World) Place(name string, p simulator.Point) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	pose, ok := w.models[name]
	if !ok {
		return errors.Wrapf(simulator.ErrModelNotFound, "%q", name)
	}
	pose.Position = p
	w.models[name] = pose
	return nil
}

func (w *World) setPose(name string, pose simulator.Pose) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.models[name] = pose
}

// Navigator drives the robot by placing it at the destination.
type Navigator struct {
	World *World
	Robot string
	// Offset is added to every destination, to model where the robot actually stops.
	Offset r3.Vector
	// Fail makes every navigation end in a failed plan.
	Fail bool
	// Push moves obstacles while the robot drives, to model collisions.
	Push map[string]simulator.Point
}

var _ navigation.Navigator = (*Navigator)(nil)

// NavigateTo places the robot at the destination plus Offset, facing the requested heading.
func (n *Navigator) NavigateTo(ctx context.Context, dest navigation.Destination) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if n.Fail {
		return false, nil
	}
	for name, p := range n.Push {
		if err := n.World.Place(name, p); err != nil {
			return false, err
		}
	}
	half := dest.Heading * math.Pi / 360
	n.World.setPose(n.Robot, simulator.Pose{
		Position:    simulator.Point{X: dest.X + n.Offset.X, Y: dest.Y + n.Offset.Y, Z: n.Offset.Z},
		Orientation: simulator.Orientation{Z: math.Sin(half), W: math.Cos(half)},
	})
	return true, nil
}

// Listener reports the robot's pose in the world, plus Drift.
type Listener struct {
	World *World
	Robot string
	Drift r3.Vector

	mu     sync.Mutex
	latest sensors.Pose
	valid  bool
}

var _ sensors.PoseListener = (*Listener)(nil)

// Name returns the name of the robot the listener follows.
func (l *Listener) Name() string {
	return l.Robot
}

// Pose returns the robot's position in the world, plus Drift.
func (l *Listener) Pose(ctx context.Context) (sensors.Pose, error) {
	pose, ok := l.World.Pose(l.Robot)
	if !ok {
		return sensors.Pose{}, errors.Wrapf(simulator.ErrModelNotFound, "%q", l.Robot)
	}
	reading := sensors.Pose{
		X:           pose.Position.X + l.Drift.X,
		Y:           pose.Position.Y + l.Drift.Y,
		Z:           pose.Position.Z + l.Drift.Z,
		ReadingTime: time.Now().UTC(),
	}
	l.mu.Lock()
	l.latest, l.valid = reading, true
	l.mu.Unlock()
	return reading, nil
}

// Latest returns the most recent reading.
func (l *Listener) Latest() (sensors.Pose, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.valid
}
