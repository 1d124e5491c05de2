// Package inject is used to mock the simulator boundary.
package inject

import (
	"context"
	"errors"

	"github.com/viam-modules/viam-navtest/simulator"
)

// Simulator represents a fake instance of the simulator services.
type Simulator struct {
	SpawnModelFunc         func(ctx context.Context, req simulator.SpawnRequest) error
	DeleteModelFunc        func(ctx context.Context, req simulator.DeleteRequest) error
	GetModelStateFunc      func(ctx context.Context, req simulator.ModelStateRequest) (simulator.ModelState, error)
	GetWorldPropertiesFunc func(ctx context.Context) (simulator.WorldProperties, error)
	GetModelPropertiesFunc func(ctx context.Context, modelName string) (simulator.ModelProperties, error)
}

// SpawnModel calls the injected SpawnModelFunc if defined else it will return an error.
func (sim *Simulator) SpawnModel(ctx context.Context, req simulator.SpawnRequest) error {
	if sim.SpawnModelFunc == nil {
		return errors.New("no SpawnModelFunc defined for injected simulator")
	}
	return sim.SpawnModelFunc(ctx, req)
}

// DeleteModel calls the injected DeleteModelFunc if defined else it will return an error.
func (sim *Simulator) DeleteModel(ctx context.Context, req simulator.DeleteRequest) error {
	if sim.DeleteModelFunc == nil {
		return errors.New("no DeleteModelFunc defined for injected simulator")
	}
	return sim.DeleteModelFunc(ctx, req)
}

// GetModelState calls the injected GetModelStateFunc if defined else it will return an error.
func (sim *Simulator) GetModelState(ctx context.Context, req simulator.ModelStateRequest) (simulator.ModelState, error) {
	if sim.GetModelStateFunc == nil {
		return simulator.ModelState{}, errors.New("no GetModelStateFunc defined for injected simulator")
	}
	return sim.GetModelStateFunc(ctx, req)
}

// GetWorldProperties calls the injected GetWorldPropertiesFunc if defined else it will return an error.
func (sim *Simulator) GetWorldProperties(ctx context.Context) (simulator.WorldProperties, error) {
	if sim.GetWorldPropertiesFunc == nil {
		return simulator.WorldProperties{}, errors.New("no GetWorldPropertiesFunc defined for injected simulator")
	}
	return sim.GetWorldPropertiesFunc(ctx)
}

// GetModelProperties calls the injected GetModelPropertiesFunc if defined else it will return an error.
func (sim *Simulator) GetModelProperties(ctx context.Context, modelName string) (simulator.ModelProperties, error) {
	if sim.GetModelPropertiesFunc == nil {
		return simulator.ModelProperties{}, errors.New("no GetModelPropertiesFunc defined for injected simulator")
	}
	return sim.GetModelPropertiesFunc(ctx, modelName)
}

// Commander is an injected DoCommand target.
type Commander struct {
	DoCommandFunc func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

// DoCommand calls the injected DoCommandFunc if defined else it will return an error.
func (c *Commander) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if c.DoCommandFunc == nil {
		return nil, errors.New("no DoCommandFunc defined for injected commander")
	}
	return c.DoCommandFunc(ctx, cmd)
}
