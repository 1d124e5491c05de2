package placement

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"

	"github.com/viam-modules/viam-navtest/internal/console"
	"github.com/viam-modules/viam-navtest/simulator"
)

// DeleteAll issues one delete per name, in order, and returns the names it attempted.
// Failures are logged and combined into the returned error; they never stop the loop.
func DeleteAll(ctx context.Context, sim simulator.Simulator, names []string, logger logging.Logger) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::placement::DeleteAll")
	defer span.End()

	attempted := make([]string, 0, len(names))
	var errs error
	for _, name := range names {
		attempted = append(attempted, name)
		logger.Info(console.Pending("Deleting", name))
		if err := sim.DeleteModel(ctx, simulator.DeleteRequest{ModelName: name}); err != nil {
			logger.Error(console.Error("Cannot delete " + name + ": " + err.Error()))
			errs = multierr.Append(errs, errors.Wrapf(err, "error deleting %q", name))
			continue
		}
		logger.Info(console.Done("Successfully deleted", name))
	}
	return attempted, errs
}

// LeakCheck returns the names that are still in the world.
func LeakCheck(ctx context.Context, sim simulator.Simulator, names []string, logger logging.Logger) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "viamnavtest::placement::LeakCheck")
	defer span.End()

	props, err := sim.GetWorldProperties(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error reading world properties")
	}
	leaked := lo.Intersect(names, props.ModelNames)
	if len(leaked) > 0 {
		logger.Warnw("obstacles left in the world after teardown", "models", leaked)
	}
	return leaked, nil
}
