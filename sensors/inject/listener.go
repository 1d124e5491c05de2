// Package inject provides dependency injected structures for mocking interfaces.
package inject

import (
	"context"
	"errors"

	s "github.com/viam-modules/viam-navtest/sensors"
)

// PoseListener is an injected PoseListener.
type PoseListener struct {
	NameFunc   func() string
	PoseFunc   func(ctx context.Context) (s.Pose, error)
	LatestFunc func() (s.Pose, bool)
}

// Name calls the injected NameFunc or returns "injected_listener".
func (l *PoseListener) Name() string {
	if l.NameFunc == nil {
		return "injected_listener"
	}
	return l.NameFunc()
}

// Pose calls the injected PoseFunc if defined else it will return an error.
func (l *PoseListener) Pose(ctx context.Context) (s.Pose, error) {
	if l.PoseFunc == nil {
		return s.Pose{}, errors.New("no PoseFunc defined for injected pose listener")
	}
	return l.PoseFunc(ctx)
}

// Latest calls the injected LatestFunc or reports no reading.
func (l *PoseListener) Latest() (s.Pose, bool) {
	if l.LatestFunc == nil {
		return s.Pose{}, false
	}
	return l.LatestFunc()
}
