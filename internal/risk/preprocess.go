package risk

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Preprocessor standardizes the numeric features and one-hot encodes the
// categorical ones. Categories unseen during Fit encode as all zeros.
type Preprocessor struct {
	Means      []float64  `json:"means"`
	Scales     []float64  `json:"scales"`
	Categories [][]string `json:"categories"`
}

func FitPreprocessor(recs []Record) *Preprocessor {
	p := &Preprocessor{
		Means:      make([]float64, len(NumericFeatures)),
		Scales:     make([]float64, len(NumericFeatures)),
		Categories: make([][]string, len(CategoricalFeatures)),
	}

	col := make([]float64, len(recs))
	for j := range NumericFeatures {
		for i, r := range recs {
			col[i] = r.numeric()[j]
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		std := math.Sqrt(variance)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		p.Means[j], p.Scales[j] = mean, std
	}

	for j := range CategoricalFeatures {
		seen := map[string]bool{}
		for _, r := range recs {
			seen[r.categorical()[j]] = true
		}
		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		p.Categories[j] = cats
	}
	return p
}

// Width is the length of a transformed row.
func (p *Preprocessor) Width() int {
	n := len(p.Means)
	for _, c := range p.Categories {
		n += len(c)
	}
	return n
}

func (p *Preprocessor) Transform(in Input) []float64 {
	out := make([]float64, 0, p.Width())
	for j, v := range in.numeric() {
		out = append(out, (v-p.Means[j])/p.Scales[j])
	}
	for j, v := range in.categorical() {
		for _, c := range p.Categories[j] {
			if c == v {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}
