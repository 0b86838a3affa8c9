// Command gaze-heatmap renders the pitch/yaw density of the gaze corpus as a
// 2D histogram image, for eyeballing coverage gaps before training.
package main

import (
	"log"

	"github.com/alexflint/go-arg"
	"github.com/dustin/go-humanize"
	"github.com/irislab/gazetrain/internal/corpus"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	var args struct {
		DB    string `arg:"--db,required" help:"path to the training corpus sqlite file"`
		Out   string `arg:"--out" default:"heatmap.png" help:"output image path"`
		Limit int    `arg:"--limit" default:"50000" help:"max rows to sample (0 for all)"`
		Bins  int    `arg:"--bins" default:"50" help:"histogram bins per axis"`
	}
	arg.MustParse(&args)

	store, err := corpus.NewStore(args.DB)
	if err != nil {
		essentials.Die(err)
	}
	pitch, yaw, err := store.GazeAngles(args.Limit)
	if err != nil {
		essentials.Die(err)
	}
	if len(pitch) == 0 {
		essentials.Die("no gaze rows in", args.DB)
	}
	log.Printf("sampled %s gaze rows", humanize.Comma(int64(len(pitch))))

	p, err := plot.New()
	if err != nil {
		essentials.Die(err)
	}
	p.Title.Text = "Heatmap of Pitch x Yaw"
	p.X.Label.Text = "Yaw"
	p.Y.Label.Text = "Pitch"
	p.Add(plotter.NewHeatMap(newHistGrid(yaw, pitch, args.Bins), palette.Heat(12, 1)))

	if err := p.Save(8*vg.Inch, 6*vg.Inch, args.Out); err != nil {
		essentials.Die(err)
	}
	log.Printf("wrote %s", args.Out)
}

// histGrid is a 2D histogram exposed as a plotter.GridXYZ, column index on
// the first axis and row index on the second.
type histGrid struct {
	bins                   int
	counts                 []float64
	xmin, xmax, ymin, ymax float64
}

func newHistGrid(xs, ys []float64, bins int) *histGrid {
	g := &histGrid{
		bins:   bins,
		counts: make([]float64, bins*bins),
		xmin:   xs[0], xmax: xs[0],
		ymin: ys[0], ymax: ys[0],
	}
	for i := range xs {
		if xs[i] < g.xmin {
			g.xmin = xs[i]
		}
		if xs[i] > g.xmax {
			g.xmax = xs[i]
		}
		if ys[i] < g.ymin {
			g.ymin = ys[i]
		}
		if ys[i] > g.ymax {
			g.ymax = ys[i]
		}
	}
	for i := range xs {
		g.counts[g.bin(ys[i], g.ymin, g.ymax)*bins+g.bin(xs[i], g.xmin, g.xmax)]++
	}
	return g
}

func (g *histGrid) bin(v, min, max float64) int {
	if max == min {
		return 0
	}
	b := int((v - min) / (max - min) * float64(g.bins))
	if b >= g.bins {
		b = g.bins - 1
	}
	return b
}

func (g *histGrid) Dims() (c, r int) {
	return g.bins, g.bins
}

func (g *histGrid) Z(c, r int) float64 {
	return g.counts[r*g.bins+c]
}

func (g *histGrid) X(c int) float64 {
	return g.xmin + (float64(c)+0.5)/float64(g.bins)*(g.xmax-g.xmin)
}

func (g *histGrid) Y(r int) float64 {
	return g.ymin + (float64(r)+0.5)/float64(g.bins)*(g.ymax-g.ymin)
}
