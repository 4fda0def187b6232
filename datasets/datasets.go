package datasets

import (
	"log"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/geom"
)

// This package provides the scene database the visualizer reads from. It
// stores a nuScenes-style relational view of a driving dataset (scenes,
// timestamped samples with the ego pose, per-sample object annotations and
// map polygons) in SQLite and presents it as an indexed prediction dataset:
//
//   - index i of the dataset is the i-th row of the prediction split, which
//     names the instance to predict and the sample it is predicted at;
//   - Frame(i) returns the model-ready inputs for that pair, expressed in the
//     local frame of the target instance, plus the ground-truth future;
//   - the raw annotations, past and future positions of every instance and
//     the ego pose are available per sample token for drawing.
//
// Data gets into the database through Import, which reads CSV exports.

var (
	// ErrIndexOutOfRange is returned when a dataset index (or a pick into the
	// list of unique instances) is outside the available range.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrNotFound is returned for unknown sample, scene or instance tokens.
	ErrNotFound = errors.New("not found")
)

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

// Annotation is one tracked object at one sample.
type Annotation struct {
	SampleToken   string
	InstanceToken string
	Category      string // dotted nuScenes category, e.g. "vehicle.car"
	Translation   r2.Vec
	Rotation      quat.Number
	// Order is the position of the annotation in its sample's annotation list.
	Order int
}

// Pose returns the annotation's pose.
func (a Annotation) Pose() geom.Pose {
	return geom.Pose{Translation: a.Translation, Rotation: a.Rotation}
}

// IsVehicle reports whether the annotation belongs to the vehicle category
// family (cars, trucks, buses, bicycles, motorcycles, ...).
func (a Annotation) IsVehicle() bool {
	top, _ := CategoryParts(a.Category)
	return top == "vehicle"
}

// IsHuman reports whether the annotation is a pedestrian of any kind.
func (a Annotation) IsHuman() bool {
	top, _ := CategoryParts(a.Category)
	return top == "human"
}

// CategoryParts splits a dotted category name into its first two segments.
// Missing segments are returned empty.
func CategoryParts(category string) (top, sub string) {
	parts := strings.SplitN(category, ".", 3)
	top = parts[0]
	if len(parts) > 1 {
		sub = parts[1]
	}
	return top, sub
}

// Scene is the metadata of a recorded scene.
type Scene struct {
	Token    string
	Name     string
	Location string
}

// MapPolygon is one polygon of a map layer (lane, walkway, ...) in global
// coordinates.
type MapPolygon struct {
	Layer    string
	ID       string
	Vertices []r2.Vec
}

// Frame is one dataset example: the inputs of the prediction model and the
// ground truth it is evaluated against.
type Frame struct {
	Index       int
	Inputs      Inputs
	GroundTruth GroundTruth
}

// GroundTruth holds the target's recorded future in its local frame.
type GroundTruth struct {
	Traj []r2.Vec
}
