package predict

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// checkpointVersion is incremented when the on-disk checkpoint format changes.
const checkpointVersion = 1

// checkpointFormat is the on-disk representation of an MLP.
type checkpointFormat struct {
	Version    int // format version
	Config     Config
	LayerSizes []int
	Weights    [][][]float32
	Biases     [][]float32
	CreatedAt  int64 // unix timestamp when the checkpoint was written
}

// SaveCheckpoint writes the model to path using encoding/gob. It performs an
// atomic write (create temp file then rename).
func (m *MLP) SaveCheckpoint(path string) error {
	if path == "" {
		return fmt.Errorf("empty checkpoint path")
	}

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	ck := checkpointFormat{
		Version:    checkpointVersion,
		Config:     m.Config,
		LayerSizes: m.layerSizes,
		Weights:    m.weights,
		Biases:     m.biases,
		CreatedAt:  time.Now().Unix(),
	}
	if err := gob.NewEncoder(tmpFile).Encode(&ck); err != nil {
		return fmt.Errorf("encode checkpoint to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp checkpoint file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp checkpoint to target: %w", err)
	}
	return nil
}

// LoadCheckpoint reads a model written by SaveCheckpoint and checks that its
// layers are consistent with its configuration.
func LoadCheckpoint(path string) (*MLP, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint %s: %w", path, err)
	}
	defer fh.Close()

	var ck checkpointFormat
	if err := gob.NewDecoder(fh).Decode(&ck); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	if ck.Version != checkpointVersion {
		return nil, fmt.Errorf("checkpoint version mismatch: file=%d expected=%d", ck.Version, checkpointVersion)
	}

	m := &MLP{Config: ck.Config, layerSizes: ck.LayerSizes, weights: ck.Weights, biases: ck.Biases}
	if err := m.checkShapes(); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return m, nil
}

func (m *MLP) checkShapes() error {
	L := len(m.layerSizes) - 1
	if L < 1 || len(m.weights) != L || len(m.biases) != L {
		return fmt.Errorf("expected %d layers, got %d weights and %d biases", L, len(m.weights), len(m.biases))
	}
	if want := FeatureDim(m.Config.HistoryLen, m.Config.VehicleSlots); m.layerSizes[0] != want {
		return fmt.Errorf("input size %d, config implies %d", m.layerSizes[0], want)
	}
	if m.layerSizes[L] != m.outputDim() {
		return fmt.Errorf("output size %d, config implies %d", m.layerSizes[L], m.outputDim())
	}
	for l := 0; l < L; l++ {
		if len(m.weights[l]) != m.layerSizes[l+1] || len(m.biases[l]) != m.layerSizes[l+1] {
			return fmt.Errorf("layer %d has %d rows, expected %d", l, len(m.weights[l]), m.layerSizes[l+1])
		}
		for j, row := range m.weights[l] {
			if len(row) != m.layerSizes[l] {
				return fmt.Errorf("layer %d row %d has %d columns, expected %d", l, j, len(row), m.layerSizes[l])
			}
		}
	}
	return nil
}
