// Package export renders stored trajectories to image files.
package export

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"linkagelab/internal/mech"
	"linkagelab/internal/storage"
)

var palette = []color.RGBA{
	{R: 214, G: 69, B: 65, A: 255},
	{R: 31, G: 119, B: 180, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
}

func jointName(i int) string {
	return fmt.Sprintf("joint %d", i)
}

// PlotAngles writes joint angle time series to an image file. The
// format follows the file extension (png, svg, pdf).
func PlotAngles(traj *storage.Trajectory, path string) error {
	if len(traj.Times) == 0 {
		return fmt.Errorf("export: empty trajectory")
	}

	p := plot.New()
	p.Title.Text = "Four-Bar Joint Angles"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Angle (rad)"
	p.Legend.Top = true

	nv := len(traj.Positions[0])
	for j := 0; j < nv; j++ {
		pts := make(plotter.XYs, len(traj.Times))
		for i, t := range traj.Times {
			pts[i] = plotter.XY{X: t, Y: traj.Positions[i][j]}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Width = vg.Points(1)
		line.Color = palette[j%len(palette)]
		p.Add(line)
		p.Legend.Add(jointName(j), line)
	}

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

// PlotViolation writes the closure violation time series.
func PlotViolation(traj *storage.Trajectory, path string) error {
	if len(traj.Times) == 0 {
		return fmt.Errorf("export: empty trajectory")
	}

	p := plot.New()
	p.Title.Text = "Loop Closure Violation"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Violation (m)"

	pts := make(plotter.XYs, len(traj.Times))
	for i, t := range traj.Times {
		pts[i] = plotter.XY{X: t, Y: traj.Violations[i]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	line.Color = palette[0]
	p.Add(line)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}

// PlotPhase writes the phase portrait (angle vs rate) of one joint.
func PlotPhase(traj *storage.Trajectory, joint int, path string) error {
	if len(traj.Times) == 0 {
		return fmt.Errorf("export: empty trajectory")
	}
	if joint < 0 || joint >= len(traj.Positions[0]) {
		return fmt.Errorf("export: joint %d out of range", joint)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Phase Portrait, %s", jointName(joint))
	p.X.Label.Text = "Angle (rad)"
	p.Y.Label.Text = "Rate (rad/s)"

	pts := make(plotter.XYs, len(traj.Times))
	for i := range traj.Times {
		pts[i] = plotter.XY{X: traj.Positions[i][joint], Y: traj.Velocities[i][joint]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(0.75)
	line.Color = palette[1]
	p.Add(line)

	return p.Save(6*vg.Inch, 6*vg.Inch, path)
}

// PlotEnergy writes total mechanical energy over time, computed from
// the stored states.
func PlotEnergy(traj *storage.Trajectory, energy mech.EnergyComputer, path string) error {
	if len(traj.Times) == 0 {
		return fmt.Errorf("export: empty trajectory")
	}

	p := plot.New()
	p.Title.Text = "Total Mechanical Energy"
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Energy (J)"

	pts := make(plotter.XYs, len(traj.Times))
	for i, t := range traj.Times {
		pts[i] = plotter.XY{X: t, Y: energy.Energy(traj.Positions[i], traj.Velocities[i])}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	line.Color = palette[2]
	p.Add(line)

	return p.Save(10*vg.Inch, 5*vg.Inch, path)
}
