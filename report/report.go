// Package report writes an HTML summary of the mode probabilities shown in
// a visualized sequence.
package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Sequence holds the ranked probabilities drawn in each frame of a sequence.
type Sequence struct {
	Scene   string
	Example int
	// Indices are the dataset indices of the frames, Probabilities the
	// ranked mode probabilities drawn in each of them.
	Indices       []int
	Probabilities [][]float64
}

func (s Sequence) validate() error {
	if len(s.Indices) != len(s.Probabilities) {
		return errors.Errorf("%d frame indices, %d probability rows", len(s.Indices), len(s.Probabilities))
	}
	return nil
}

func (s Sequence) maxModes() int {
	n := 0
	for _, p := range s.Probabilities {
		if len(p) > n {
			n = len(p)
		}
	}
	return n
}

// Write renders the report as a standalone HTML page.
func Write(w io.Writer, s Sequence) error {
	if err := s.validate(); err != nil {
		return err
	}
	title := fmt.Sprintf("Example %d: %s", s.Example, s.Scene)

	frames := make([]string, len(s.Indices))
	for i, idx := range s.Indices {
		frames[i] = fmt.Sprintf("%d", idx)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mode probabilities per frame", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "dataset index", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "probability", Min: 0, Max: 1}),
	)
	line.SetXAxis(frames)

	K := s.maxModes()
	means := make([]opts.BarData, K)
	ranks := make([]string, K)
	for k := 0; k < K; k++ {
		data := make([]opts.LineData, len(s.Probabilities))
		var present []float64
		for i, p := range s.Probabilities {
			if k < len(p) {
				data[i] = opts.LineData{Value: p[k]}
				present = append(present, p[k])
			} else {
				data[i] = opts.LineData{Value: "-"}
			}
		}
		name := fmt.Sprintf("mode %d", k+1)
		line.AddSeries(name, data)
		ranks[k] = name
		mean := 0.0
		if len(present) > 0 {
			mean = stat.Mean(present, nil)
		}
		means[k] = opts.BarData{Value: mean}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Mean probability by rank", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(ranks).AddSeries("mean", means)

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(line, bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return errors.Wrap(err, "render probability report")
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile writes the report to path, creating parent directories.
func WriteFile(path string, s Sequence) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", filepath.Dir(path))
	}
	var buf bytes.Buffer
	if err := Write(&buf, s); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
