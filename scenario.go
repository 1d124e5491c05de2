package viamnavtest

import (
	"github.com/samber/lo"

	"github.com/viam-modules/viam-navtest/navigation"
	"github.com/viam-modules/viam-navtest/placement"
	"github.com/viam-modules/viam-navtest/report"
)

// Checkpoints recorded around the navigation.
const (
	CheckpointNavStart = "nav_start"
	CheckpointNavEnd   = "nav_end"
)

// Names of the steps of a scenario, in the order they run.
const (
	StepSetUp                     = "set_up"
	StepVerificationOfNavigation  = "verification_of_navigation"
	StepCollisionDetection        = "collision_detection"
	StepLocationVerification      = "location_verification"
	StepDestinationVerification   = "destination_verification"
	StepOperationZoneVerification = "operation_zone_verification"
	StepTearDown                  = "tear_down"
)

// ScenarioContext is the state of one scenario. It is created at set up and cleared at tear down.
type ScenarioContext struct {
	Records     []placement.Record
	Spawned     []string
	Used        placement.CellSet
	Destination *navigation.Destination
	Checkpoints []string
	Report      *report.Report
}

// NewScenarioContext returns an empty scenario with the robot's start cell reserved.
func NewScenarioContext(seed int64) *ScenarioContext {
	return &ScenarioContext{
		Used:   placement.NewCellSet(placement.Origin),
		Report: report.New(seed),
	}
}

// Recorded reports whether checkpoint was written during the scenario.
func (sc *ScenarioContext) Recorded(checkpoint string) bool {
	return lo.Contains(sc.Checkpoints, checkpoint)
}

// Clear forgets every obstacle and the destination. The report is left in place.
func (sc *ScenarioContext) Clear() {
	sc.Records = nil
	sc.Spawned = nil
	sc.Used = placement.NewCellSet(placement.Origin)
	sc.Destination = nil
	sc.Checkpoints = nil
}
