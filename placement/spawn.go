package placement

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/logging"

	"github.com/viam-modules/viam-navtest/internal/console"
	"github.com/viam-modules/viam-navtest/simulator"
)

// ModelPath returns where the model description of an obstacle type lives: <dir>/<type>/<type>.sdf.
func ModelPath(dir, modelType string) string {
	return filepath.Join(dir, modelType, modelType+".sdf")
}

// Pose returns the spawn pose of the obstacle.
func (r Record) Pose() simulator.Pose {
	return simulator.Pose{
		Position: simulator.Point{X: r.X, Y: r.Y, Z: r.Z},
		Orientation: simulator.Orientation{
			X: r.Quaternion.X,
			Y: r.Quaternion.Y,
			Z: r.Quaternion.Z,
			W: r.Quaternion.W,
		},
	}
}

// Spawner inserts placed obstacles into the simulator.
type Spawner struct {
	Simulator      simulator.Simulator
	ModelDir       string
	Namespace      string
	ReferenceFrame string
	Logger         logging.Logger

	descriptions map[string]string
}

func (s *Spawner) description(modelType string) (string, error) {
	if desc, ok := s.descriptions[modelType]; ok {
		return desc, nil
	}
	path := ModelPath(s.ModelDir, modelType)
	//nolint:gosec
	b, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "error reading model description of %q", modelType)
	}
	if s.descriptions == nil {
		s.descriptions = make(map[string]string)
	}
	s.descriptions[modelType] = string(b)
	return string(b), nil
}

// Request builds the spawn request of an obstacle.
func (s *Spawner) Request(r Record) (simulator.SpawnRequest, error) {
	desc, err := s.description(r.Type)
	if err != nil {
		return simulator.SpawnRequest{}, err
	}
	namespace := s.Namespace
	if namespace == "" {
		namespace = simulator.DefaultRobotNamespace
	}
	frame := s.ReferenceFrame
	if frame == "" {
		frame = simulator.DefaultReferenceFrame
	}
	return simulator.SpawnRequest{
		ModelName:      r.Name(),
		ModelXML:       desc,
		RobotNamespace: namespace,
		InitialPose:    r.Pose(),
		ReferenceFrame: frame,
	}, nil
}

// Spawn inserts one obstacle.
func (s *Spawner) Spawn(ctx context.Context, r Record) error {
	req, err := s.Request(r)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	return s.Simulator.SpawnModel(ctx, req)
}

// SpawnAll inserts every record and returns the names of the obstacles that were spawned.
// A failed spawn is logged and does not stop the others.
func (s *Spawner) SpawnAll(ctx context.Context, records []Record) []string {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::placement::SpawnAll")
	defer span.End()

	spawned := make([]string, 0, len(records))
	for _, r := range records {
		if err := s.Spawn(ctx, r); err != nil {
			s.Logger.Error(console.Error("Cannot spawn " + r.Name() + ": " + err.Error()))
			continue
		}
		s.Logger.Debugw("spawned obstacle", "name", r.Name(), "x", r.X, "y", r.Y)
		spawned = append(spawned, r.Name())
		s.describe(ctx, r.Name())
	}
	return spawned
}

// describe logs what the simulator made of a spawned obstacle. Failures are only logged.
func (s *Spawner) describe(ctx context.Context, name string) {
	props, err := s.Simulator.GetModelProperties(ctx, name)
	if err != nil {
		s.Logger.Warnw("cannot read properties of spawned obstacle", "name", name, "error", err)
		return
	}
	s.Logger.Debugw("obstacle properties", "name", name, "static", props.IsStatic, "bodies", props.BodyNames)
}
