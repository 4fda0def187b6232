package viz

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/Noofbiz/trajviz/render"
	"github.com/Noofbiz/trajviz/report"
)

// SequenceSource lists the dataset indices of every example.
type SequenceSource interface {
	VisIndices(picks []int) ([][]int, error)
}

// Visualizer writes one animation and one probability report per example.
type Visualizer struct {
	Composer  *Composer
	Sequences SequenceSource
	// WriteReport enables the HTML probability report next to every gif.
	WriteReport bool
}

// NewVisualizer returns a visualizer that writes reports.
func NewVisualizer(c *Composer, seqs SequenceSource) *Visualizer {
	return &Visualizer{Composer: c, Sequences: seqs, WriteReport: true}
}

// GIFPath is where the animation of an example is written.
func GIFPath(outDir string, example int, scene string) string {
	return filepath.Join(outDir, "results", "gifs", fmt.Sprintf("example%d%s.gif", example, scene))
}

// ReportPath is where the probability report of an example is written.
func ReportPath(outDir string, example int, scene string) string {
	return filepath.Join(outDir, "results", "reports", fmt.Sprintf("example%d%s.html", example, scene))
}

func (v *Visualizer) sequences() ([][]int, error) {
	return v.Sequences.VisIndices(v.Composer.Config.InstancePicks)
}

// Run renders example n into outDir and returns the path of the animation.
func (v *Visualizer) Run(example int, outDir string) (string, error) {
	seqs, err := v.sequences()
	if err != nil {
		return "", err
	}
	if example < 0 || example >= len(seqs) {
		return "", errors.Wrapf(ErrIndexOutOfRange, "example %d not in [0, %d)", example, len(seqs))
	}
	return v.run(example, seqs[example], outDir)
}

func (v *Visualizer) run(example int, idcs []int, outDir string) (string, error) {
	start := time.Now()
	seq, err := v.Composer.ComposeSequence(idcs)
	if err != nil {
		return "", errors.Wrapf(err, "example %d", example)
	}
	path := GIFPath(outDir, example, seq.Scene.Name)
	if err := render.WriteGIF(path, seq.Frames, v.Composer.Config.FPS); err != nil {
		return "", errors.Wrapf(err, "example %d", example)
	}
	if v.WriteReport {
		rep := report.Sequence{
			Scene:         seq.Scene.Name,
			Example:       example,
			Indices:       seq.Indices,
			Probabilities: seq.Probabilities,
		}
		if err := report.WriteFile(ReportPath(outDir, example, seq.Scene.Name), rep); err != nil {
			return "", errors.Wrapf(err, "example %d", example)
		}
	}
	Logf("Saved gif for example %d in %.1f seconds", example, time.Since(start).Seconds())
	return path, nil
}

// RunAll renders every example. A failing example does not stop the others;
// the returned error aggregates every failure.
func (v *Visualizer) RunAll(outDir string) ([]string, error) {
	seqs, err := v.sequences()
	if err != nil {
		return nil, err
	}
	var (
		paths  []string
		result *multierror.Error
	)
	for n, idcs := range seqs {
		path, err := v.run(n, idcs, outDir)
		if err != nil {
			Logf("example %d failed: %v", n, err)
			result = multierror.Append(result, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, result.ErrorOrNil()
}
