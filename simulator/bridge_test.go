package simulator_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
	"go.viam.com/test"

	"github.com/viam-modules/viam-navtest/simulator"
	"github.com/viam-modules/viam-navtest/simulator/inject"
)

func spawnRequest() simulator.SpawnRequest {
	pose := simulator.IdentityPose()
	pose.Position = simulator.Point{X: 1, Y: -2, Z: 0.02}
	return simulator.SpawnRequest{
		ModelName:      "box12",
		ModelXML:       "<sdf version='1.6'/>",
		RobotNamespace: simulator.DefaultRobotNamespace,
		InitialPose:    pose,
		ReferenceFrame: simulator.DefaultReferenceFrame,
	}
}

func TestBridgeSpawnModel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	t.Run("sends the typed request as a spawn_model command", func(t *testing.T) {
		var sent map[string]interface{}
		cmd := &inject.Commander{DoCommandFunc: func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
			sent = cmd
			return map[string]interface{}{"success": true, "status_message": "SpawnModel: Successfully spawned entity"}, nil
		}}
		bridge := simulator.NewBridge("gazebo", cmd, logger)
		test.That(t, bridge.Name(), test.ShouldEqual, "gazebo")
		test.That(t, bridge.SpawnModel(ctx, spawnRequest()), test.ShouldBeNil)

		test.That(t, sent[simulator.CommandKey], test.ShouldEqual, simulator.SpawnModelCommand)
		test.That(t, sent["model_name"], test.ShouldEqual, "box12")
		test.That(t, sent["robot_namespace"], test.ShouldEqual, "/RSG")
		test.That(t, sent["reference_frame"], test.ShouldEqual, "world")
		pose := sent["initial_pose"].(map[string]interface{})
		test.That(t, pose["position"].(map[string]interface{})["y"], test.ShouldEqual, -2.0)
		test.That(t, pose["orientation"].(map[string]interface{})["w"], test.ShouldEqual, 1.0)
	})

	t.Run("rejects an invalid request without calling the simulator", func(t *testing.T) {
		bridge := simulator.NewBridge("gazebo", &inject.Commander{}, logger)

		req := spawnRequest()
		req.ModelXML = ""
		test.That(t, errors.Is(bridge.SpawnModel(ctx, req), simulator.ErrModelXMLRequired), test.ShouldBeTrue)

		req = spawnRequest()
		req.InitialPose.Orientation = simulator.Orientation{}
		test.That(t, errors.Is(bridge.SpawnModel(ctx, req), simulator.ErrNonUnitQuaternion), test.ShouldBeTrue)

		req = spawnRequest()
		req.ModelName = ""
		test.That(t, bridge.SpawnModel(ctx, req), test.ShouldBeError, simulator.ErrModelNameRequired)
	})

	t.Run("returns the status message when the simulator reports failure", func(t *testing.T) {
		cmd := &inject.Commander{DoCommandFunc: func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"success": false, "status_message": "entity already exists"}, nil
		}}
		err := simulator.NewBridge("gazebo", cmd, logger).SpawnModel(ctx, spawnRequest())
		test.That(t, errors.Is(err, simulator.ErrCallFailed), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "entity already exists")
	})

	t.Run("wraps transport errors with the command name", func(t *testing.T) {
		cmd := &inject.Commander{DoCommandFunc: func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
			return nil, errors.New("connection refused")
		}}
		err := simulator.NewBridge("gazebo", cmd, logger).SpawnModel(ctx, spawnRequest())
		test.That(t, err, test.ShouldBeError, errors.New("spawn_model error: connection refused"))
	})
}

func TestBridgeDeleteModel(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	var sent map[string]interface{}
	cmd := &inject.Commander{DoCommandFunc: func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
		sent = cmd
		return map[string]interface{}{}, nil
	}}
	bridge := simulator.NewBridge("gazebo", cmd, logger)

	t.Run("treats a response without a success field as success", func(t *testing.T) {
		test.That(t, bridge.DeleteModel(ctx, simulator.DeleteRequest{ModelName: "box12"}), test.ShouldBeNil)
		test.That(t, sent, test.ShouldResemble, map[string]interface{}{"command": "delete_model", "model_name": "box12"})
	})

	t.Run("rejects a request without a model name", func(t *testing.T) {
		test.That(t, bridge.DeleteModel(ctx, simulator.DeleteRequest{}), test.ShouldBeError, simulator.ErrModelNameRequired)
	})
}

func TestBridgeQueries(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	cmd := &inject.Commander{DoCommandFunc: func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
		switch cmd[simulator.CommandKey] {
		case simulator.GetModelStateCommand:
			return map[string]interface{}{
				"success": true,
				"pose": map[string]interface{}{
					"position":    map[string]interface{}{"x": 1.25, "y": -0.5, "z": 0},
					"orientation": map[string]interface{}{"x": 0, "y": 0, "z": 0, "w": 1},
				},
			}, nil
		case simulator.GetWorldPropertiesCommand:
			return map[string]interface{}{
				"sim_time":    "12.5",
				"model_names": []interface{}{"ground_plane", "hsrb", "box12"},
				"success":     true,
			}, nil
		case simulator.GetModelPropertiesCommand:
			return map[string]interface{}{
				"canonical_body_name": "link",
				"body_names":          []string{"link"},
				"is_static":           true,
			}, nil
		default:
			return nil, errors.New("unknown command")
		}
	}}
	bridge := simulator.NewBridge("gazebo", cmd, logger)

	t.Run("decodes a model state", func(t *testing.T) {
		state, err := bridge.GetModelState(ctx, simulator.ModelStateRequest{ModelName: "hsrb", RelativeEntityName: "world"})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, state.Pose.Position, test.ShouldResemble, simulator.Point{X: 1.25, Y: -0.5})
		test.That(t, state.Pose.Orientation.W, test.ShouldEqual, 1.0)
	})

	t.Run("requires a relative entity for a model state", func(t *testing.T) {
		_, err := bridge.GetModelState(ctx, simulator.ModelStateRequest{ModelName: "hsrb"})
		test.That(t, errors.Is(err, simulator.ErrReferenceFrameRequired), test.ShouldBeTrue)
	})

	t.Run("decodes world properties", func(t *testing.T) {
		props, err := bridge.GetWorldProperties(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, props.SimTime, test.ShouldEqual, 12.5)
		test.That(t, props.ModelNames, test.ShouldResemble, []string{"ground_plane", "hsrb", "box12"})
	})

	t.Run("decodes model properties", func(t *testing.T) {
		props, err := bridge.GetModelProperties(ctx, "box12")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, props.IsStatic, test.ShouldBeTrue)
		test.That(t, props.BodyNames, test.ShouldResemble, []string{"link"})

		_, err = bridge.GetModelProperties(ctx, "")
		test.That(t, err, test.ShouldBeError, simulator.ErrModelNameRequired)
	})
}

// bridgeResource is a generic service that forwards DoCommand to an injected commander.
type bridgeResource struct {
	resource.Named
	resource.TriviallyReconfigurable
	resource.TriviallyCloseable
	cmd *inject.Commander
}

func (r *bridgeResource) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return r.cmd.DoCommand(ctx, cmd)
}

func TestNewBridgeFromDependencies(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	t.Run("finds the simulator among the generic services", func(t *testing.T) {
		cmd := &inject.Commander{DoCommandFunc: func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
			test.That(t, cmd[simulator.CommandKey], test.ShouldEqual, simulator.GetWorldPropertiesCommand)
			return map[string]interface{}{"success": true, "model_names": []interface{}{"hsrb"}}, nil
		}}
		deps := resource.Dependencies{
			generic.Named("gazebo"): &bridgeResource{Named: generic.Named("gazebo").AsNamed(), cmd: cmd},
		}

		bridge, err := simulator.NewBridgeFromDependencies(deps, "gazebo", logger)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, bridge.Name(), test.ShouldEqual, "gazebo")

		props, err := bridge.GetWorldProperties(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, props.ModelNames, test.ShouldResemble, []string{"hsrb"})
	})

	t.Run("fails when the simulator is not a dependency", func(t *testing.T) {
		_, err := simulator.NewBridgeFromDependencies(resource.Dependencies{}, "gazebo", logger)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "error getting simulator \"gazebo\"")
	})
}
