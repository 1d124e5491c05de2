package navigation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/components/base"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/motion"
	"go.viam.com/rdk/services/slam"
	goutils "go.viam.com/utils"
)

// DefaultPollInterval is how often the plan history is checked while the robot is moving.
const DefaultPollInterval = 500 * time.Millisecond

// Planner is the part of the motion service the navigator needs.
type Planner interface {
	MoveOnMap(ctx context.Context, req motion.MoveOnMapReq) (motion.ExecutionID, error)
	PlanHistory(ctx context.Context, req motion.PlanHistoryReq) ([]motion.PlanWithStatus, error)
}

// MotionNavigator navigates by asking the motion service to move the base on the SLAM map.
type MotionNavigator struct {
	planner      Planner
	base         resource.Name
	slam         resource.Name
	pollInterval time.Duration
	logger       logging.Logger
}

// NewMotionNavigator returns a navigator that moves baseName on the map built by slamName.
func NewMotionNavigator(
	planner Planner,
	baseName string,
	slamName string,
	pollInterval time.Duration,
	logger logging.Logger,
) *MotionNavigator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &MotionNavigator{
		planner:      planner,
		base:         base.Named(baseName),
		slam:         slam.Named(slamName),
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// NavigateTo starts a MoveOnMap execution and waits for it to succeed, fail or be stopped.
// A failed or stopped plan returns false with a nil error.
func (n *MotionNavigator) NavigateTo(ctx context.Context, dest Destination) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::navigation::NavigateTo")
	defer span.End()

	n.logger.Infof("navigating %v to x=%v y=%v heading=%v", n.base.ShortName(), dest.X, dest.Y, dest.Heading)
	executionID, err := n.planner.MoveOnMap(ctx, motion.MoveOnMapReq{
		ComponentName: n.base,
		Destination:   dest.Pose(),
		SlamName:      n.slam,
	})
	if err != nil {
		return false, errors.Wrap(err, "MoveOnMap error")
	}

	for {
		plans, err := n.planner.PlanHistory(ctx, motion.PlanHistoryReq{
			ComponentName: n.base,
			ExecutionID:   executionID,
			LastPlanOnly:  true,
		})
		if err != nil {
			return false, errors.Wrap(err, "PlanHistory error")
		}

		if len(plans) > 0 && len(plans[0].StatusHistory) > 0 {
			status := plans[0].StatusHistory[0]
			switch status.State {
			case motion.PlanStateSucceeded:
				return true, nil
			case motion.PlanStateFailed, motion.PlanStateStopped:
				n.logger.Warnw("navigation did not reach its destination", "state", status.State.String(), "reason", reason(status))
				return false, nil
			default:
			}
		}

		if !goutils.SelectContextOrWait(ctx, n.pollInterval) {
			return false, ctx.Err()
		}
	}
}

func reason(status motion.PlanStatus) string {
	if status.Reason == nil {
		return ""
	}
	return *status.Reason
}
