package risk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot kinds served under /visualizations/{kind}.
const (
	PlotEducation     = "education"
	PlotContraceptive = "contraceptive"
	PlotIncome        = "income"
)

var ErrUnknownPlot = errors.New("risk: unknown plot type")

const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var barWidth = vg.Points(14)

// Plotter renders PNGs into Dir and keeps at most MaxFiles there.
type Plotter struct {
	Dir      string
	MaxFiles int

	mu sync.Mutex
}

func NewPlotter(dir string, maxFiles int) (*Plotter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if maxFiles <= 0 {
		maxFiles = 10
	}
	return &Plotter{Dir: dir, MaxFiles: maxFiles}, nil
}

// Render writes the two charts for kind and returns their file names.
func (p *Plotter) Render(kind string, recs []Record) ([2]string, error) {
	var names [2]string
	var plots [2]*plot.Plot
	var err error

	switch kind {
	case PlotEducation:
		names = [2]string{"education_count.png", "education_bar.png"}
		plots, err = categoryPlots(recs, func(r Record) string { return r.EducationLevel }, "Education Level")
	case PlotContraceptive:
		names = [2]string{"contraceptive_count.png", "contraceptive_bar.png"}
		plots, err = categoryPlots(recs, func(r Record) string { return r.ContraceptiveUse }, "Contraceptive Use")
	case PlotIncome:
		names = [2]string{"income_box.png", "income_mean.png"}
		plots, err = incomePlots(recs)
	default:
		return names, ErrUnknownPlot
	}
	if err != nil {
		return names, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for i, pl := range plots {
		if err := pl.Save(plotWidth, plotHeight, filepath.Join(p.Dir, names[i])); err != nil {
			return names, fmt.Errorf("save %s: %w", names[i], err)
		}
	}
	return names, p.prune()
}

// prune removes the oldest files beyond MaxFiles.
func (p *Plotter) prune() error {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return err
	}
	type file struct {
		name string
		mod  int64
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{e.Name(), info.ModTime().UnixNano()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod < files[j].mod })
	for len(files) > p.MaxFiles {
		if err := os.Remove(filepath.Join(p.Dir, files[0].name)); err != nil && !os.IsNotExist(err) {
			return err
		}
		files = files[1:]
	}
	return nil
}

// counts returns the sorted categories and a per-class count for each.
func counts(recs []Record, key func(Record) string) ([]string, [][]float64) {
	seen := map[string]bool{}
	for _, r := range recs {
		seen[key(r)] = true
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	idx := make(map[string]int, len(cats))
	for i, c := range cats {
		idx[c] = i
	}

	out := make([][]float64, len(Classes))
	for k := range out {
		out[k] = make([]float64, len(cats))
	}
	for _, r := range recs {
		if k := classIndex(r.Risk); k >= 0 {
			out[k][idx[key(r)]]++
		}
	}
	return cats, out
}

// categoryPlots draws a grouped count chart and a stacked chart.
func categoryPlots(recs []Record, key func(Record) string, label string) ([2]*plot.Plot, error) {
	cats, byClass := counts(recs, key)

	grouped := plot.New()
	grouped.Title.Text = label + " Distribution"
	grouped.Y.Label.Text = "count"
	stacked := plot.New()
	stacked.Title.Text = label + " vs Risk Category"
	stacked.Y.Label.Text = "count"

	var below *plotter.BarChart
	for k, class := range Classes {
		g, err := plotter.NewBarChart(plotter.Values(byClass[k]), barWidth)
		if err != nil {
			return [2]*plot.Plot{}, err
		}
		g.Color = plotutil.Color(k)
		g.LineStyle.Width = 0
		g.Offset = barWidth * vg.Length(k-1)
		grouped.Add(g)
		grouped.Legend.Add(class, g)

		s, err := plotter.NewBarChart(plotter.Values(byClass[k]), barWidth*2)
		if err != nil {
			return [2]*plot.Plot{}, err
		}
		s.Color = plotutil.Color(k)
		s.LineStyle.Width = 0
		if below != nil {
			s.StackOn(below)
		}
		below = s
		stacked.Add(s)
		stacked.Legend.Add(class, s)
	}
	grouped.NominalX(cats...)
	stacked.NominalX(cats...)
	grouped.Legend.Top = true
	stacked.Legend.Top = true
	return [2]*plot.Plot{grouped, stacked}, nil
}

func incomeByClass(recs []Record) []plotter.Values {
	out := make([]plotter.Values, len(Classes))
	for _, r := range recs {
		if k := classIndex(r.Risk); k >= 0 {
			out[k] = append(out[k], r.FamilyIncomeRwf)
		}
	}
	return out
}

// incomePlots draws a box plot and a mean-income bar chart per class.
func incomePlots(recs []Record) ([2]*plot.Plot, error) {
	byClass := incomeByClass(recs)

	box := plot.New()
	box.Title.Text = "Family Income vs Risk Category"
	box.Y.Label.Text = "Family_Income_Rwf"
	means := make(plotter.Values, len(Classes))
	for k, vals := range byClass {
		if len(vals) == 0 {
			continue
		}
		b, err := plotter.NewBoxPlot(vg.Points(40), float64(k), vals)
		if err != nil {
			return [2]*plot.Plot{}, err
		}
		box.Add(b)
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		means[k] = sum / float64(len(vals))
	}
	box.NominalX(Classes...)

	bar := plot.New()
	bar.Title.Text = "Mean Family Income by Risk Category"
	bar.Y.Label.Text = "Family_Income_Rwf"
	mb, err := plotter.NewBarChart(means, vg.Points(40))
	if err != nil {
		return [2]*plot.Plot{}, err
	}
	mb.Color = plotutil.Color(0)
	bar.Add(mb)
	bar.NominalX(Classes...)
	return [2]*plot.Plot{box, bar}, nil
}
