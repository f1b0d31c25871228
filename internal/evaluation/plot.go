package evaluation

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SavePRCurve plots precision against recall across thresholds and saves it
// to path. The image format follows the file extension.
func SavePRCurve(path, title string, metrics []Metrics) error {
	if len(metrics) == 0 {
		return fmt.Errorf("no metrics to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(metrics))
	labels := make([]string, len(metrics))
	for i, m := range metrics {
		pts[i] = plotter.XY{X: m.Recall, Y: m.Precision}
		labels[i] = fmt.Sprintf("%.1f", m.Threshold)
	}

	line, scatter, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("failed to build PR line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	line.Width = vg.Points(1.5)
	scatter.GlyphStyle.Color = line.Color
	p.Add(line, scatter)
	p.Legend.Add("STD", line, scatter)
	p.Legend.Top = true
	p.Legend.Left = false

	lbl, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: labels})
	if err != nil {
		return fmt.Errorf("failed to build threshold labels: %w", err)
	}
	p.Add(lbl)

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save PR curve: %w", err)
	}
	return nil
}
