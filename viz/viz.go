// Package viz composes prediction visualizations: for every dataset index
// of a tracked instance it picks the agents to draw, gathers their past and
// future, runs the prediction model and projects the ranked modes onto the
// map, producing one rendered frame per index.
package viz

import (
	"fmt"
	"log"

	"github.com/pkg/errors"

	"github.com/Noofbiz/trajviz/datasets"
)

var (
	// ErrInsufficientAnnotations is returned when a frame has fewer agents
	// than the reference selection requires.
	ErrInsufficientAnnotations = errors.New("insufficient annotations")

	// ErrMissingTrajectoryData is returned when an instance has no recorded
	// past or future entry.
	ErrMissingTrajectoryData = errors.New("missing trajectory data")

	// ErrIndexOutOfRange is returned when a dataset index or example number
	// is outside the available range.
	ErrIndexOutOfRange = datasets.ErrIndexOutOfRange
)

// FrameError reports the dataset index and instance of the frame that
// aborted a sequence.
type FrameError struct {
	Index         int
	InstanceToken string
	Err           error
}

func (e *FrameError) Error() string {
	if e.InstanceToken == "" {
		return fmt.Sprintf("frame at index %d: %v", e.Index, e.Err)
	}
	return fmt.Sprintf("frame at index %d (instance %s): %v", e.Index, e.InstanceToken, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Logf is the package logger. It defaults to log.Printf; use SetLogger to
// redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
