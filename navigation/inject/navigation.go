// Package inject is used to mock navigation.
package inject

import (
	"context"
	"errors"

	"go.viam.com/rdk/services/motion"

	"github.com/viam-modules/viam-navtest/navigation"
)

// Navigator is an injected Navigator.
type Navigator struct {
	NavigateToFunc func(ctx context.Context, dest navigation.Destination) (bool, error)
}

// NavigateTo calls the injected NavigateToFunc if defined else it will return an error.
func (n *Navigator) NavigateTo(ctx context.Context, dest navigation.Destination) (bool, error) {
	if n.NavigateToFunc == nil {
		return false, errors.New("no NavigateToFunc defined for injected navigator")
	}
	return n.NavigateToFunc(ctx, dest)
}

// Planner is an injected Planner.
type Planner struct {
	MoveOnMapFunc   func(ctx context.Context, req motion.MoveOnMapReq) (motion.ExecutionID, error)
	PlanHistoryFunc func(ctx context.Context, req motion.PlanHistoryReq) ([]motion.PlanWithStatus, error)
}

// MoveOnMap calls the injected MoveOnMapFunc if defined else it will return an error.
func (p *Planner) MoveOnMap(ctx context.Context, req motion.MoveOnMapReq) (motion.ExecutionID, error) {
	if p.MoveOnMapFunc == nil {
		return motion.ExecutionID{}, errors.New("no MoveOnMapFunc defined for injected planner")
	}
	return p.MoveOnMapFunc(ctx, req)
}

// PlanHistory calls the injected PlanHistoryFunc if defined else it will return an error.
func (p *Planner) PlanHistory(ctx context.Context, req motion.PlanHistoryReq) ([]motion.PlanWithStatus, error) {
	if p.PlanHistoryFunc == nil {
		return nil, errors.New("no PlanHistoryFunc defined for injected planner")
	}
	return p.PlanHistoryFunc(ctx, req)
}
