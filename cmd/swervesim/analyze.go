package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/swerve/internal/analysis"
)

var (
	analyzeBand     float64
	analyzeSpectrum string
)

// analyzeRun prints the pivot and wheel step response of every module and
// the dominant frequency of pivot rate ringing.
func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, trace, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(trace.Rows) < 2 {
		return fmt.Errorf("no data")
	}
	dt := trace.Times[1] - trace.Times[0]

	fmt.Printf("response analysis: %s\n\n", meta.ID)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tJOINT\tSTEP\tOVERSHOOT\tRISE\tSETTLE\tRINGING")
	for _, name := range meta.Modules {
		pivot := analysis.StepResponse(trace.Times, trace.Column(name+".pivot_angle"), analyzeBand)
		freq, _ := analysis.DominantFrequency(trace.Column(name+".pivot_rate"), dt)
		fmt.Fprintf(w, "%s\tpivot\t%+.3f rad\t%.1f%%\t%s\t%.3fs\t%s\n",
			name, pivot.Final-pivot.Initial, 100*pivot.Overshoot, seconds(pivot.RiseTime), pivot.SettlingTime, hertz(freq))

		wheel := analysis.StepResponse(trace.Times, trace.Column(name+".wheel_rate"), analyzeBand)
		fmt.Fprintf(w, "\twheel\t%+.3f rad/s\t%.1f%%\t%s\t%.3fs\t\n",
			wheel.Final-wheel.Initial, 100*wheel.Overshoot, seconds(wheel.RiseTime), wheel.SettlingTime)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if analyzeSpectrum == "" {
		return nil
	}
	data := trace.Column(analyzeSpectrum)
	if data == nil {
		return fmt.Errorf("no column %q in run %s", analyzeSpectrum, meta.ID)
	}
	ps := analysis.PowerSpectrum(data)
	if len(ps) < 8 {
		return fmt.Errorf("column %q is too short for a spectrum", analyzeSpectrum)
	}
	fmt.Println()
	fmt.Println(asciigraph.Plot(ps[:len(ps)/4],
		asciigraph.Height(15),
		asciigraph.Width(80),
		asciigraph.Caption("power spectrum ("+analyzeSpectrum+")"),
	))
	return nil
}

func seconds(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.3fs", v)
}

func hertz(f float64) string {
	if f == 0 {
		return "-"
	}
	return fmt.Sprintf("%.2f Hz", f)
}
