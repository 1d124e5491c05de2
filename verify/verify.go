// Package verify checks where the robot ended up and whether anything in the world moved.
package verify

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

const (
	// DefaultTolerance is how far, in metres, the robot may be from a reference on each axis.
	DefaultTolerance = 0.45
	// DefaultBoundary is the half-width, in metres, of the square the robot must stay inside.
	DefaultBoundary = 5.0
)

// ErrLengthMismatch denotes that two checkpoints hold a different number of values.
var ErrLengthMismatch = errors.New("checkpoints hold a different number of models")

// Band is a symmetric tolerance window.
type Band struct {
	Tolerance float64
}

// Contains reports whether got is within the band around want.
func (b Band) Contains(want, got float64) bool {
	return math.Abs(want-got) <= b.Tolerance
}

// Boundary is the operational zone, a square centred on the origin.
type Boundary struct {
	Limit float64
}

// Contains reports whether p lies inside the boundary on x and y.
func (b Boundary) Contains(p r3.Vector) bool {
	return math.Abs(p.X) <= b.Limit && math.Abs(p.Y) <= b.Limit
}

// ToleranceError reports an axis on which two positions disagree by more than the tolerance.
type ToleranceError struct {
	Check     string
	Axis      string
	Want      float64
	Got       float64
	Tolerance float64
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf("%s: %s is %.3f, want %.3f ± %.3f", e.Check, e.Axis, e.Got, e.Want, e.Tolerance)
}

// BoundaryError reports a position outside the operational zone.
type BoundaryError struct {
	Name  string
	Point r3.Vector
	Limit float64
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("%s at (%.3f, %.3f) is outside the operational zone ±%.3f", e.Name, e.Point.X, e.Point.Y, e.Limit)
}

// CollisionError reports an obstacle whose position changed between two checkpoints.
type CollisionError struct {
	Axis   string
	Index  int
	Before float64
	After  float64
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("obstacle %d moved on %s from %.3f to %.3f", e.Index, e.Axis, e.Before, e.After)
}

func within(check string, want, got r3.Vector, band Band) error {
	if !band.Contains(want.X, got.X) {
		return &ToleranceError{Check: check, Axis: "x", Want: want.X, Got: got.X, Tolerance: band.Tolerance}
	}
	if !band.Contains(want.Y, got.Y) {
		return &ToleranceError{Check: check, Axis: "y", Want: want.Y, Got: got.Y, Tolerance: band.Tolerance}
	}
	return nil
}

// Destination checks that the robot's reference position ref is within band of the requested destination on x and y.
func Destination(ref, dest r3.Vector, band Band) error {
	return within("destination", dest, ref, band)
}

// Location checks that the position the robot reports agrees with its ground truth within band.
func Location(observed, ref r3.Vector, band Band) error {
	return within("location", ref, observed, band)
}

// NamedPoint is a position tagged with where it came from.
type NamedPoint struct {
	Name  string
	Point r3.Vector
}

// OperationalZone checks that every point lies inside the boundary.
func OperationalZone(boundary Boundary, points ...NamedPoint) error {
	for _, p := range points {
		if !boundary.Contains(p.Point) {
			return &BoundaryError{Name: p.Name, Point: p.Point, Limit: boundary.Limit}
		}
	}
	return nil
}

// CollisionFree checks that obstacle values on axis did not change. The slices must be aligned by model.
func CollisionFree(axis string, before, after []float64) error {
	if len(before) != len(after) {
		return errors.Wrapf(ErrLengthMismatch, "%s: %d before, %d after", axis, len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			return &CollisionError{Axis: axis, Index: i, Before: before[i], After: after[i]}
		}
	}
	return nil
}
