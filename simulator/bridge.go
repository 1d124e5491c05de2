package simulator

import (
	"context"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
)

// Command names understood by the simulator bridge.
const (
	CommandKey                = "command"
	SpawnModelCommand         = "spawn_model"
	DeleteModelCommand        = "delete_model"
	GetModelStateCommand      = "get_model_state"
	GetWorldPropertiesCommand = "get_world_properties"
	GetModelPropertiesCommand = "get_model_properties"
)

// ErrCallFailed denotes that the simulator answered a command with success set to false.
var ErrCallFailed = errors.New("simulator call failed")

// Commander is anything that accepts DoCommand requests, such as a Viam generic service.
type Commander interface {
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

type status struct {
	Success       bool   `mapstructure:"success"`
	StatusMessage string `mapstructure:"status_message"`
}

// Bridge reaches the simulator through a resource that forwards DoCommand requests to its services.
type Bridge struct {
	name   string
	cmd    Commander
	logger logging.Logger
}

// NewBridge returns a simulator backed by cmd.
func NewBridge(name string, cmd Commander, logger logging.Logger) *Bridge {
	return &Bridge{name: name, cmd: cmd, logger: logger}
}

// NewBridgeFromDependencies looks up the generic service called name and returns a simulator backed by it.
func NewBridgeFromDependencies(deps resource.Dependencies, name string, logger logging.Logger) (*Bridge, error) {
	res, err := resource.FromDependencies[resource.Resource](deps, generic.Named(name))
	if err != nil {
		return nil, errors.Wrapf(err, "error getting simulator %q for navigation tests", name)
	}
	return NewBridge(name, res, logger), nil
}

// Name returns the name of the resource the bridge talks to.
func (b *Bridge) Name() string {
	return b.name
}

// SpawnModel inserts a model into the world.
func (b *Bridge) SpawnModel(ctx context.Context, req SpawnRequest) error {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::simulator::SpawnModel")
	defer span.End()

	if err := req.Validate(); err != nil {
		return err
	}
	resp, err := b.do(ctx, SpawnModelCommand, map[string]interface{}{
		"model_name":      req.ModelName,
		"model_xml":       req.ModelXML,
		"robot_namespace": req.RobotNamespace,
		"initial_pose":    req.InitialPose.toMap(),
		"reference_frame": req.ReferenceFrame,
	})
	if err != nil {
		return err
	}
	return checkStatus(SpawnModelCommand, resp)
}

// DeleteModel removes a model from the world.
func (b *Bridge) DeleteModel(ctx context.Context, req DeleteRequest) error {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::simulator::DeleteModel")
	defer span.End()

	if err := req.Validate(); err != nil {
		return err
	}
	resp, err := b.do(ctx, DeleteModelCommand, map[string]interface{}{
		"model_name": req.ModelName,
	})
	if err != nil {
		return err
	}
	return checkStatus(DeleteModelCommand, resp)
}

// GetModelState returns the ground-truth pose of a model.
func (b *Bridge) GetModelState(ctx context.Context, req ModelStateRequest) (ModelState, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::simulator::GetModelState")
	defer span.End()

	if err := req.Validate(); err != nil {
		return ModelState{}, err
	}
	resp, err := b.do(ctx, GetModelStateCommand, map[string]interface{}{
		"model_name":           req.ModelName,
		"relative_entity_name": req.RelativeEntityName,
	})
	if err != nil {
		return ModelState{}, err
	}
	if err := checkStatus(GetModelStateCommand, resp); err != nil {
		return ModelState{}, err
	}
	var state ModelState
	if err := decode(resp, &state); err != nil {
		return ModelState{}, errors.Wrap(err, "error decoding model state")
	}
	return state, nil
}

// GetWorldProperties returns the names of the models in the world.
func (b *Bridge) GetWorldProperties(ctx context.Context) (WorldProperties, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::simulator::GetWorldProperties")
	defer span.End()

	resp, err := b.do(ctx, GetWorldPropertiesCommand, nil)
	if err != nil {
		return WorldProperties{}, err
	}
	if err := checkStatus(GetWorldPropertiesCommand, resp); err != nil {
		return WorldProperties{}, err
	}
	var props WorldProperties
	if err := decode(resp, &props); err != nil {
		return WorldProperties{}, errors.Wrap(err, "error decoding world properties")
	}
	return props, nil
}

// GetModelProperties returns the properties of a spawned model.
func (b *Bridge) GetModelProperties(ctx context.Context, modelName string) (ModelProperties, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::simulator::GetModelProperties")
	defer span.End()

	if modelName == "" {
		return ModelProperties{}, ErrModelNameRequired
	}
	resp, err := b.do(ctx, GetModelPropertiesCommand, map[string]interface{}{
		"model_name": modelName,
	})
	if err != nil {
		return ModelProperties{}, err
	}
	if err := checkStatus(GetModelPropertiesCommand, resp); err != nil {
		return ModelProperties{}, err
	}
	var props ModelProperties
	if err := decode(resp, &props); err != nil {
		return ModelProperties{}, errors.Wrap(err, "error decoding model properties")
	}
	return props, nil
}

func (b *Bridge) do(ctx context.Context, command string, args map[string]interface{}) (map[string]interface{}, error) {
	cmd := map[string]interface{}{CommandKey: command}
	for k, v := range args {
		cmd[k] = v
	}
	b.logger.Debugw("sending simulator command", "simulator", b.name, "command", command)
	resp, err := b.cmd.DoCommand(ctx, cmd)
	if err != nil {
		return nil, errors.Wrapf(err, "%s error", command)
	}
	return resp, nil
}

// checkStatus treats a missing success field as success so bridges that only report failures work.
func checkStatus(command string, resp map[string]interface{}) error {
	if _, ok := resp["success"]; !ok {
		return nil
	}
	var st status
	if err := decode(resp, &st); err != nil {
		return errors.Wrapf(err, "error decoding %s status", command)
	}
	if !st.Success {
		return errors.Wrapf(ErrCallFailed, "%s: %s", command, st.StatusMessage)
	}
	return nil
}

func decode(input map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
