package viz

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/Noofbiz/trajviz/datasets"
	"github.com/Noofbiz/trajviz/render"
)

// ExtractHistory turns most-recent-first past positions into a
// chronological history ending at current. Without past positions the
// history is current alone.
func ExtractHistory(past []r2.Vec, current r2.Vec) []r2.Vec {
	out := make([]r2.Vec, 0, len(past)+1)
	for i := len(past) - 1; i >= 0; i-- {
		out = append(out, past[i])
	}
	return append(out, current)
}

// ExtractFuture returns a copy of the chronological future positions.
func ExtractFuture(future []r2.Vec) []r2.Vec {
	return append([]r2.Vec{}, future...)
}

// Classify picks the drawing style of an annotation. Bicycles and
// motorcycles are checked before other vehicles.
func Classify(a datasets.Annotation, targetToken string) render.Style {
	if a.InstanceToken == targetToken {
		return render.StyleTarget
	}
	top, sub := datasets.CategoryParts(a.Category)
	switch {
	case sub == "motorcycle" || sub == "bicycle":
		return render.StyleTwoWheeler
	case top == "vehicle":
		return render.StyleVehicle
	case top == "human":
		return render.StylePedestrian
	default:
		return render.StyleObject
	}
}
