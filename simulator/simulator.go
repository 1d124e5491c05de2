// Package simulator defines the typed boundary to the physics simulator navigation scenarios run in.
package simulator

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

const (
	// DefaultReferenceFrame is the frame spawn poses and model states are expressed in.
	DefaultReferenceFrame = "world"
	// DefaultRobotNamespace is the namespace spawned obstacles live under.
	DefaultRobotNamespace = "/RSG"

	unitQuaternionTolerance = 1e-6
)

var (
	// ErrModelNameRequired denotes that a request did not name a model.
	ErrModelNameRequired = errors.New("model name is required")
	// ErrModelXMLRequired denotes that a spawn request carried no model description.
	ErrModelXMLRequired = errors.New("model description is required")
	// ErrReferenceFrameRequired denotes that a request did not name a reference frame.
	ErrReferenceFrameRequired = errors.New("reference frame is required")
	// ErrNonUnitQuaternion denotes that a pose orientation is not a valid rotation.
	ErrNonUnitQuaternion = errors.New("orientation is not a unit quaternion")
	// ErrNonFinitePosition denotes that a pose position holds NaN or infinite values.
	ErrNonFinitePosition = errors.New("position must be finite")
	// ErrModelNotFound denotes that the simulator has no model by the requested name.
	ErrModelNotFound = errors.New("model not found")
	// ErrModelExists denotes that a model with the requested name is already spawned.
	ErrModelExists = errors.New("model already exists")
)

// Point is a position in metres.
type Point struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	Z float64 `mapstructure:"z"`
}

// Orientation is a quaternion in (x, y, z, w) order.
type Orientation struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
	Z float64 `mapstructure:"z"`
	W float64 `mapstructure:"w"`
}

// Pose is a position and orientation in a reference frame.
type Pose struct {
	Position    Point       `mapstructure:"position"`
	Orientation Orientation `mapstructure:"orientation"`
}

// IdentityPose returns a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: Orientation{W: 1}}
}

// Validate checks that the pose is finite and its orientation is a rotation.
func (p Pose) Validate() error {
	for _, v := range []float64{p.Position.X, p.Position.Y, p.Position.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinitePosition
		}
	}
	o := p.Orientation
	norm := math.Sqrt(o.X*o.X + o.Y*o.Y + o.Z*o.Z + o.W*o.W)
	if math.Abs(norm-1) > unitQuaternionTolerance {
		return errors.Wrapf(ErrNonUnitQuaternion, "norm %v", norm)
	}
	return nil
}

func (p Pose) toMap() map[string]interface{} {
	return map[string]interface{}{
		"position": map[string]interface{}{
			"x": p.Position.X,
			"y": p.Position.Y,
			"z": p.Position.Z,
		},
		"orientation": map[string]interface{}{
			"x": p.Orientation.X,
			"y": p.Orientation.Y,
			"z": p.Orientation.Z,
			"w": p.Orientation.W,
		},
	}
}

// SpawnRequest asks the simulator to insert a model.
type SpawnRequest struct {
	ModelName      string
	ModelXML       string
	RobotNamespace string
	InitialPose    Pose
	ReferenceFrame string
}

// Validate checks the request before it is dispatched.
func (req SpawnRequest) Validate() error {
	if req.ModelName == "" {
		return ErrModelNameRequired
	}
	if req.ModelXML == "" {
		return errors.Wrapf(ErrModelXMLRequired, "spawning %q", req.ModelName)
	}
	if req.ReferenceFrame == "" {
		return errors.Wrapf(ErrReferenceFrameRequired, "spawning %q", req.ModelName)
	}
	return errors.Wrapf(req.InitialPose.Validate(), "spawning %q", req.ModelName)
}

// DeleteRequest asks the simulator to remove a model.
type DeleteRequest struct {
	ModelName string
}

// Validate checks the request before it is dispatched.
func (req DeleteRequest) Validate() error {
	if req.ModelName == "" {
		return ErrModelNameRequired
	}
	return nil
}

// ModelStateRequest asks for the pose of a model relative to another entity.
type ModelStateRequest struct {
	ModelName          string
	RelativeEntityName string
}

// Validate checks the request before it is dispatched.
func (req ModelStateRequest) Validate() error {
	if req.ModelName == "" {
		return ErrModelNameRequired
	}
	if req.RelativeEntityName == "" {
		return errors.Wrapf(ErrReferenceFrameRequired, "state of %q", req.ModelName)
	}
	return nil
}

// ModelState is the ground-truth state of a model.
type ModelState struct {
	Pose Pose `mapstructure:"pose"`
}

// WorldProperties describes the simulated world.
type WorldProperties struct {
	SimTime    float64  `mapstructure:"sim_time"`
	ModelNames []string `mapstructure:"model_names"`
}

// ModelProperties describes a spawned model.
type ModelProperties struct {
	ParentModelName   string   `mapstructure:"parent_model_name"`
	CanonicalBodyName string   `mapstructure:"canonical_body_name"`
	BodyNames         []string `mapstructure:"body_names"`
	IsStatic          bool     `mapstructure:"is_static"`
}

// Simulator is the set of simulator services navigation scenarios use.
type Simulator interface {
	SpawnModel(ctx context.Context, req SpawnRequest) error
	DeleteModel(ctx context.Context, req DeleteRequest) error
	GetModelState(ctx context.Context, req ModelStateRequest) (ModelState, error)
	GetWorldProperties(ctx context.Context) (WorldProperties, error)
	GetModelProperties(ctx context.Context, modelName string) (ModelProperties, error)
}
