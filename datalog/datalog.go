// Package datalog records ground-truth poses of the robot and the obstacles at named checkpoints and
// compares checkpoints with each other.
package datalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.viam.com/rdk/logging"

	"github.com/viam-modules/viam-navtest/simulator"
)

const (
	// RobotFile holds the robot sample of a checkpoint.
	RobotFile = "robot.csv"
	// ModelsFile holds the obstacle samples of a checkpoint.
	ModelsFile = "models.csv"
	// TimeFormat is the timestamp format used in the logs.
	TimeFormat = "2006-01-02T15:04:05.0000Z"

	decimals = 3
)

var (
	// ErrInvalidCheckpoint denotes a checkpoint name that cannot be used as a directory name.
	ErrInvalidCheckpoint = errors.New("checkpoint name must be non-empty and contain no path separators")
	// ErrUnknownAxis denotes an axis other than X-pos, Y-pos and Z-pos.
	ErrUnknownAxis = errors.New("unknown axis")
	// ErrModelSetMismatch denotes two checkpoints that did not sample the same models.
	ErrModelSetMismatch = errors.New("checkpoints hold different models")
	// ErrNoRobotSample denotes a checkpoint without a robot sample.
	ErrNoRobotSample = errors.New("checkpoint has no robot sample")

	header = []string{"model", "x", "y", "z", "qx", "qy", "qz", "qw", "time"}
)

// Axis names a position column of the logs.
type Axis string

// The position axes a checkpoint can be compared on.
const (
	AxisX Axis = "X-pos"
	AxisY Axis = "Y-pos"
	AxisZ Axis = "Z-pos"
)

// Axes lists every position axis.
var Axes = []Axis{AxisX, AxisY, AxisZ}

// Value returns the sample's value on the axis.
func (a Axis) Value(s Sample) (float64, error) {
	switch a {
	case AxisX:
		return s.X, nil
	case AxisY:
		return s.Y, nil
	case AxisZ:
		return s.Z, nil
	default:
		return 0, errors.Wrapf(ErrUnknownAxis, "%q", string(a))
	}
}

// Sample is the ground-truth pose of one model at one checkpoint.
type Sample struct {
	Checkpoint string
	Model      string
	X          float64
	Y          float64
	Z          float64
	QX         float64
	QY         float64
	QZ         float64
	QW         float64
	Time       time.Time
}

func newSample(checkpoint, model string, pose simulator.Pose, now time.Time) Sample {
	return Sample{
		Checkpoint: checkpoint,
		Model:      model,
		X:          round(pose.Position.X),
		Y:          round(pose.Position.Y),
		Z:          round(pose.Position.Z),
		QX:         round(pose.Orientation.X),
		QY:         round(pose.Orientation.Y),
		QZ:         round(pose.Orientation.Z),
		QW:         round(pose.Orientation.W),
		Time:       now,
	}
}

func round(v float64) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}

func (s Sample) row() []string {
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', decimals, 64) }
	return []string{
		s.Model,
		format(s.X), format(s.Y), format(s.Z),
		format(s.QX), format(s.QY), format(s.QZ), format(s.QW),
		s.Time.UTC().Format(TimeFormat),
	}
}

func parseRow(checkpoint string, record []string) (Sample, error) {
	if len(record) != len(header) {
		return Sample{}, errors.Errorf("expected %d columns, got %d", len(header), len(record))
	}
	values := make([]float64, 7)
	for i := range values {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return Sample{}, errors.Wrapf(err, "column %s", header[i+1])
		}
		values[i] = v
	}
	t, err := time.Parse(TimeFormat, record[8])
	if err != nil {
		return Sample{}, errors.Wrap(err, "column time")
	}
	return Sample{
		Checkpoint: checkpoint,
		Model:      record[0],
		X:          values[0],
		Y:          values[1],
		Z:          values[2],
		QX:         values[3],
		QY:         values[4],
		QZ:         values[5],
		QW:         values[6],
		Time:       t,
	}, nil
}

func validateCheckpoint(checkpoint string) error {
	if checkpoint == "" || checkpoint == "." || checkpoint == ".." || strings.ContainsAny(checkpoint, `/\`) {
		return errors.Wrapf(ErrInvalidCheckpoint, "%q", checkpoint)
	}
	return nil
}

func encode(samples []Sample) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range samples {
		if err := w.Write(s.row()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Recorder samples the simulator's ground truth into checkpoint directories under Dir.
type Recorder struct {
	Dir            string
	Simulator      simulator.Simulator
	Robot          string
	ReferenceFrame string
	Logger         logging.Logger
}

// Record samples the robot and every model in models and writes the checkpoint's files.
// A model whose state cannot be read is logged and left out; a robot that cannot be read is an error.
func (r *Recorder) Record(ctx context.Context, checkpoint string, models []string) error {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::datalog::Record")
	defer span.End()

	if err := validateCheckpoint(checkpoint); err != nil {
		return err
	}
	frame := r.ReferenceFrame
	if frame == "" {
		frame = simulator.DefaultReferenceFrame
	}

	now := time.Now().UTC()
	robotState, err := r.Simulator.GetModelState(ctx, simulator.ModelStateRequest{ModelName: r.Robot, RelativeEntityName: frame})
	if err != nil {
		return errors.Wrapf(err, "error reading ground truth of robot %q at %s", r.Robot, checkpoint)
	}
	robot := newSample(checkpoint, r.Robot, robotState.Pose, now)

	samples := make([]Sample, 0, len(models))
	for _, model := range models {
		state, err := r.Simulator.GetModelState(ctx, simulator.ModelStateRequest{ModelName: model, RelativeEntityName: frame})
		if err != nil {
			r.Logger.Errorw("error reading ground truth, leaving model out of checkpoint",
				"model", model, "checkpoint", checkpoint, "error", err)
			continue
		}
		samples = append(samples, newSample(checkpoint, model, state.Pose, now))
	}

	dir := filepath.Join(r.Dir, checkpoint)
	robotBytes, err := encode([]Sample{robot})
	if err != nil {
		return err
	}
	if err := WriteBytesToFile(robotBytes, filepath.Join(dir, RobotFile)); err != nil {
		return errors.Wrapf(err, "error writing %s of %s", RobotFile, checkpoint)
	}
	modelBytes, err := encode(samples)
	if err != nil {
		return err
	}
	if err := WriteBytesToFile(modelBytes, filepath.Join(dir, ModelsFile)); err != nil {
		return errors.Wrapf(err, "error writing %s of %s", ModelsFile, checkpoint)
	}

	r.Logger.Debugf("recorded checkpoint %s: robot at (%v, %v), %d models", checkpoint, robot.X, robot.Y, len(samples))
	return nil
}

// Reader reads checkpoints written by a Recorder.
type Reader struct {
	Dir string
}

func (r Reader) readFile(checkpoint, name string) ([]Sample, error) {
	if err := validateCheckpoint(checkpoint); err != nil {
		return nil, err
	}
	//nolint:gosec
	f, err := os.Open(filepath.Join(r.Dir, checkpoint, name))
	if err != nil {
		return nil, errors.Wrapf(err, "error opening checkpoint %s", checkpoint)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "error reading checkpoint %s", checkpoint)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("checkpoint %s: %s has no header", checkpoint, name)
	}

	samples := make([]Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		s, err := parseRow(checkpoint, record)
		if err != nil {
			return nil, errors.Wrapf(err, "checkpoint %s: %s row %d", checkpoint, name, i+1)
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// Read returns the obstacle samples of a checkpoint in the order they were recorded.
func (r Reader) Read(checkpoint string) ([]Sample, error) {
	return r.readFile(checkpoint, ModelsFile)
}

// Robot returns the robot sample of a checkpoint.
func (r Reader) Robot(checkpoint string) (Sample, error) {
	samples, err := r.readFile(checkpoint, RobotFile)
	if err != nil {
		return Sample{}, err
	}
	if len(samples) == 0 {
		return Sample{}, errors.Wrapf(ErrNoRobotSample, "%s", checkpoint)
	}
	return samples[0], nil
}

// Compare returns the values on axis of every obstacle at checkpoints a and b, aligned by model name.
func (r Reader) Compare(axis Axis, a, b string) ([]float64, []float64, error) {
	if _, err := axis.Value(Sample{}); err != nil {
		return nil, nil, err
	}
	before, err := r.Read(a)
	if err != nil {
		return nil, nil, err
	}
	after, err := r.Read(b)
	if err != nil {
		return nil, nil, err
	}

	byModel := func(samples []Sample) map[string]Sample {
		m := make(map[string]Sample, len(samples))
		for _, s := range samples {
			m[s.Model] = s
		}
		return m
	}
	beforeByModel, afterByModel := byModel(before), byModel(after)
	if len(beforeByModel) != len(afterByModel) {
		return nil, nil, errors.Wrapf(ErrModelSetMismatch, "%s has %d, %s has %d", a, len(beforeByModel), b, len(afterByModel))
	}

	models := make([]string, 0, len(beforeByModel))
	for model := range beforeByModel {
		if _, ok := afterByModel[model]; !ok {
			return nil, nil, errors.Wrapf(ErrModelSetMismatch, "%s is missing from %s", model, b)
		}
		models = append(models, model)
	}
	sort.Strings(models)

	valuesA := make([]float64, 0, len(models))
	valuesB := make([]float64, 0, len(models))
	for _, model := range models {
		va, _ := axis.Value(beforeByModel[model])
		vb, _ := axis.Value(afterByModel[model])
		valuesA = append(valuesA, va)
		valuesB = append(valuesB, vb)
	}
	return valuesA, valuesB, nil
}
