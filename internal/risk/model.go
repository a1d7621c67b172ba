package risk

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TrainOptions tune the gradient-descent fit.
type TrainOptions struct {
	LearningRate float64
	Iterations   int
	L2           float64
}

var DefaultTrainOptions = TrainOptions{LearningRate: 0.1, Iterations: 1500, L2: 1e-3}

// Model is a multinomial logistic regression over preprocessed features.
type Model struct {
	Pre     *Preprocessor
	Weights *mat.Dense // (features+1) x classes; the last row is the bias
}

// Metrics are computed on the training set.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Rows      int     `json:"rows"`
	PerClass  []int   `json:"per_class"`
	FinalLoss float64 `json:"final_loss"`
}

var ErrSingleClass = errors.New("risk: training data must contain at least two classes")

// Train fits a preprocessor and a softmax model on recs.
func Train(recs []Record, opts TrainOptions) (*Model, Metrics, error) {
	if len(recs) == 0 {
		return nil, Metrics{}, ErrEmptyDataset
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultTrainOptions.LearningRate
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultTrainOptions.Iterations
	}

	perClass := make([]int, len(Classes))
	for _, r := range recs {
		i := classIndex(r.Risk)
		if i < 0 {
			return nil, Metrics{}, fmt.Errorf("unknown label %q", r.Risk)
		}
		perClass[i]++
	}
	present := 0
	for _, n := range perClass {
		if n > 0 {
			present++
		}
	}
	if present < 2 {
		return nil, Metrics{}, ErrSingleClass
	}

	pre := FitPreprocessor(recs)
	x := design(pre, recs)
	n, d := x.Dims()
	k := len(Classes)

	y := mat.NewDense(n, k, nil)
	for i, r := range recs {
		y.Set(i, classIndex(r.Risk), 1)
	}

	w := mat.NewDense(d, k, nil)
	var probs, grad, reg mat.Dense
	for it := 0; it < opts.Iterations; it++ {
		probs.Mul(x, w)
		softmaxRows(&probs)
		probs.Sub(&probs, y)
		grad.Mul(x.T(), &probs)
		grad.Scale(1/float64(n), &grad)

		// no penalty on the bias row
		reg.Scale(opts.L2, w)
		for j := 0; j < k; j++ {
			reg.Set(d-1, j, 0)
		}
		grad.Add(&grad, &reg)

		grad.Scale(opts.LearningRate, &grad)
		w.Sub(w, &grad)
	}

	m := &Model{Pre: pre, Weights: w}

	probs.Mul(x, w)
	softmaxRows(&probs)
	correct, loss := 0, 0.0
	for i, r := range recs {
		row := probs.RawRowView(i)
		want := classIndex(r.Risk)
		if floats.MaxIdx(row) == want {
			correct++
		}
		loss -= math.Log(math.Max(row[want], 1e-12))
	}
	return m, Metrics{
		Accuracy:  float64(correct) / float64(n),
		Rows:      n,
		PerClass:  perClass,
		FinalLoss: loss / float64(n),
	}, nil
}

// design builds the feature matrix with a trailing bias column.
func design(pre *Preprocessor, recs []Record) *mat.Dense {
	d := pre.Width() + 1
	data := make([]float64, 0, len(recs)*d)
	for _, r := range recs {
		data = append(data, pre.Transform(r.Input)...)
		data = append(data, 1)
	}
	return mat.NewDense(len(recs), d, data)
}

func softmaxRows(m *mat.Dense) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		top := floats.Max(row)
		sum := 0.0
		for j := range row {
			row[j] = math.Exp(row[j] - top)
			sum += row[j]
		}
		floats.Scale(1/sum, row)
	}
}

// Prediction is the most likely class and the full distribution in Classes order.
type Prediction struct {
	Category      string    `json:"Risk_Category"`
	Probabilities []float64 `json:"Probabilities"`
}

func (m *Model) Predict(in Input) Prediction {
	feat := append(m.Pre.Transform(in), 1)
	x := mat.NewDense(1, len(feat), feat)
	var p mat.Dense
	p.Mul(x, m.Weights)
	softmaxRows(&p)
	row := append([]float64(nil), p.RawRowView(0)...)
	return Prediction{Category: Classes[floats.MaxIdx(row)], Probabilities: row}
}

// Snapshot is the serialisable form of a trained model.
type Snapshot struct {
	Pre      *Preprocessor `json:"preprocessor"`
	Rows     int           `json:"rows"`
	Cols     int           `json:"cols"`
	Weights  []float64     `json:"weights"`
	Metrics  Metrics       `json:"metrics"`
	Source   string        `json:"source"`
	Training []Record      `json:"training,omitempty"`
}

func (m *Model) Snapshot() Snapshot {
	r, c := m.Weights.Dims()
	w := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		w = append(w, m.Weights.RawRowView(i)...)
	}
	return Snapshot{Pre: m.Pre, Rows: r, Cols: c, Weights: w}
}

func (s *Snapshot) Model() (*Model, error) {
	if s.Pre == nil || s.Rows*s.Cols != len(s.Weights) || s.Cols != len(Classes) {
		return nil, errors.New("risk: corrupt model snapshot")
	}
	if s.Rows != s.Pre.Width()+1 {
		return nil, errors.New("risk: snapshot width does not match preprocessor")
	}
	return &Model{Pre: s.Pre, Weights: mat.NewDense(s.Rows, s.Cols, append([]float64(nil), s.Weights...))}, nil
}
