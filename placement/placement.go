// Package placement generates randomized, non-overlapping obstacle placements for navigation scenarios
// and spawns and removes them in the simulator.
package placement

import (
	"math"
	"math/rand"
	"strconv"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

const (
	// DefaultZ is the height obstacles are dropped from, just above the floor.
	DefaultZ = 0.02
	// maxSuffix bounds the numeric suffix that disambiguates obstacles of the same type.
	maxSuffix = 999
)

var (
	// ErrNoObstacleTypes denotes that no obstacle types were given to choose from.
	ErrNoObstacleTypes = errors.New("at least one obstacle type is required")
	// ErrNilRand denotes that no random source was given.
	ErrNilRand = errors.New("a random source is required")
	// ErrNegativeCount denotes that a negative number of obstacles was requested.
	ErrNegativeCount = errors.New("cannot place a negative number of obstacles")
)

// Cell is an integer (x, y) grid cell an obstacle occupies.
type Cell struct {
	X int
	Y int
}

// Origin is the cell the robot starts in.
var Origin = Cell{X: 0, Y: 0}

// CellSet is the running set of cells already used in a scenario.
type CellSet map[Cell]struct{}

// NewCellSet returns a set that already contains the reserved cells.
func NewCellSet(reserved ...Cell) CellSet {
	set := make(CellSet, len(reserved))
	for _, c := range reserved {
		set[c] = struct{}{}
	}
	return set
}

// Contains reports whether c is used.
func (s CellSet) Contains(c Cell) bool {
	_, ok := s[c]
	return ok
}

// Add marks c as used and reports whether it was free.
func (s CellSet) Add(c Cell) bool {
	if s.Contains(c) {
		return false
	}
	s[c] = struct{}{}
	return true
}

// Range is an inclusive integer interval.
type Range struct {
	Min int
	Max int
}

// Validate checks that the range is not empty.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return errors.Errorf("invalid range [%d, %d]: min is greater than max", r.Min, r.Max)
	}
	return nil
}

// Width returns the number of integers in the range.
func (r Range) Width() int {
	return r.Max - r.Min + 1
}

// Draw returns an integer drawn uniformly from the range.
func (r Range) Draw(rng *rand.Rand) int {
	return r.Min + rng.Intn(r.Width())
}

// Record describes one obstacle placed in a scenario.
type Record struct {
	Type       string
	ID         int
	X          float64
	Y          float64
	Z          float64
	Roll       float64
	Pitch      float64
	Yaw        float64
	Quaternion Quaternion
}

// NewRecord returns a record with its quaternion derived from roll, pitch and yaw.
func NewRecord(modelType string, id int, x, y, z, roll, pitch, yaw float64) Record {
	return Record{
		Type:       modelType,
		ID:         id,
		X:          x,
		Y:          y,
		Z:          z,
		Roll:       roll,
		Pitch:      pitch,
		Yaw:        yaw,
		Quaternion: EulerToQuaternion(roll, pitch, yaw),
	}
}

// Name returns the simulator model name of the obstacle.
func (r Record) Name() string {
	return r.Type + strconv.Itoa(r.ID)
}

// Cell returns the grid cell of the obstacle.
func (r Record) Cell() Cell {
	return Cell{X: int(r.X), Y: int(r.Y)}
}

// Config holds what is needed to place obstacles.
type Config struct {
	Rand  *rand.Rand
	Area  Range
	Types []string
	Z     float64
	// Retries is how many extra draws a slot gets when it lands on a used cell.
	// With zero retries the slot is skipped, so fewer obstacles than requested may be placed.
	Retries   int
	RandomYaw bool
	Logger    logging.Logger
}

// Validate checks that obstacles can be placed with config.
func (config *Config) Validate() error {
	if config.Rand == nil {
		return ErrNilRand
	}
	if len(config.Types) == 0 {
		return ErrNoObstacleTypes
	}
	if config.Retries < 0 {
		return errors.New("cannot specify retries less than zero")
	}
	return config.Area.Validate()
}

// Place draws n placements. A slot whose draw lands on a cell in used is skipped once its retries are
// exhausted, so the result holds at most n records, all on distinct cells not previously in used.
// used is updated with every cell handed out.
func (config *Config) Place(n int, used CellSet) ([]Record, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, ErrNegativeCount
	}

	names := make(map[string]struct{}, n)
	records := make([]Record, 0, n)
	for slot := 0; slot < n; slot++ {
		cell, ok := config.draw(used)
		if !ok {
			if config.Logger != nil {
				config.Logger.Debugf("obstacle slot %d landed on a used cell, skipping", slot)
			}
			continue
		}
		used.Add(cell)

		modelType := config.Types[config.Rand.Intn(len(config.Types))]
		id := config.uniqueID(modelType, names)
		names[modelType+strconv.Itoa(id)] = struct{}{}

		var yaw float64
		if config.RandomYaw {
			yaw = config.Rand.Float64() * 2 * math.Pi
		}
		records = append(records, NewRecord(modelType, id, float64(cell.X), float64(cell.Y), config.Z, 0, 0, yaw))
	}
	return records, nil
}

func (config *Config) draw(used CellSet) (Cell, bool) {
	for attempt := 0; attempt <= config.Retries; attempt++ {
		cell := Cell{X: config.Area.Draw(config.Rand), Y: config.Area.Draw(config.Rand)}
		if !used.Contains(cell) {
			return cell, true
		}
	}
	return Cell{}, false
}

func (config *Config) uniqueID(modelType string, names map[string]struct{}) int {
	for attempt := 0; attempt < maxSuffix; attempt++ {
		id := 1 + config.Rand.Intn(maxSuffix)
		if _, taken := names[modelType+strconv.Itoa(id)]; !taken {
			return id
		}
	}
	id := maxSuffix + 1
	for {
		if _, taken := names[modelType+strconv.Itoa(id)]; !taken {
			return id
		}
		id++
	}
}
