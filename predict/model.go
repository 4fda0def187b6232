package predict

import (
	"github.com/Noofbiz/trajviz/datasets"
)

// Model predicts the future of the target of one dataset example. Models
// must not modify in.
type Model interface {
	Predict(in datasets.Inputs) (Bundle, error)
}

// FeatureDim is the length of the vector Features returns for inputs with
// histories of historyLen points and the given number of vehicle slots.
func FeatureDim(historyLen, vehicleSlots int) int {
	return 2*historyLen + vehicleSlots*(2*historyLen+1)
}

// Features flattens the inputs into a feature vector: the target history
// (x0,y0,x1,y1,...), then per vehicle slot its history followed by 1 when
// the slot is occupied and 0 when it is empty. Pedestrians are not used.
func Features(in datasets.Inputs) []float32 {
	n := len(in.TargetHistory)
	out := make([]float32, 0, FeatureDim(n, len(in.Vehicles)))
	for _, p := range in.TargetHistory {
		out = append(out, float32(p.X), float32(p.Y))
	}
	for i, h := range in.Vehicles {
		for j := 0; j < n; j++ {
			if j < len(h) {
				out = append(out, float32(h[j].X), float32(h[j].Y))
			} else {
				out = append(out, 0, 0)
			}
		}
		occupied := float32(0)
		if i < len(in.VehicleMasks) && !in.VehicleMasks[i] {
			occupied = 1
		}
		out = append(out, occupied)
	}
	return out
}
