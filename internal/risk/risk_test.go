package risk

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const header = "Age,Education_Level,Ubudehe_Category,Family_Income_Rwf,Healthcare_Access_Score," +
	"Sexual_Education_Hours,Contraceptive_Use,Peer_Influence,Parental_Involvement,Community_Resources,Risk_Category\n"

// sampleCSV builds n rows where education hours and contraceptive use separate the classes.
func sampleCSV(n int) string {
	var b strings.Builder
	b.WriteString(header)
	edu := []string{"Primary", "Secondary", "University"}
	use := []string{"Yes", "Sometimes", "No"}
	for i := 0; i < n; i++ {
		k := i % 3
		fmt.Fprintf(&b, "%d,%s,Category %d,%d,%d,%.1f,%s,%d,%d,%d,%s\n",
			16+i%6, edu[(i/3)%3], 1+i%4, 40000+k*-10000+i*10, 8-k*3,
			12-float64(k)*5+float64(i%2)/2, use[k], 2+k*3, 8-k*3, 5, Classes[k])
	}
	return b.String()
}

func sampleRecords(t *testing.T, n int) []Record {
	t.Helper()
	recs, err := ParseCSV(strings.NewReader(sampleCSV(n)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return recs
}

func TestParseCSV(t *testing.T) {
	recs := sampleRecords(t, 9)
	if len(recs) != 9 {
		t.Fatalf("rows: %d", len(recs))
	}
	if recs[2].Risk != HighRisk || recs[2].ContraceptiveUse != "No" || recs[0].Age != 16 {
		t.Errorf("row: %+v", recs[2])
	}
}

func TestParseCSVErrors(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"empty", "", "no rows"},
		{"header only", header, "no rows"},
		{"missing column", "Age,Risk_Category\n17,Low Risk\n", "missing column"},
		{"bad number", header + "x,P,C,1,1,1,Yes,1,1,1,Low Risk\n", "line 2: Age"},
		{"bad label", header + "17,P,C,1,1,1,Yes,1,1,1,Extreme\n", "unknown Risk_Category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want %q", err, tt.want)
			}
		})
	}
}

func TestPreprocessor(t *testing.T) {
	recs := []Record{
		{Input: Input{Age: 10, EducationLevel: "B", UbudeheCategory: "1", ContraceptiveUse: "No"}, Risk: LowRisk},
		{Input: Input{Age: 20, EducationLevel: "A", UbudeheCategory: "1", ContraceptiveUse: "Yes"}, Risk: HighRisk},
	}
	p := FitPreprocessor(recs)
	if p.Width() != 7+2+1+2 {
		t.Fatalf("width %d", p.Width())
	}
	row := p.Transform(recs[1].Input)
	if row[0] != 1 {
		t.Errorf("standardized age: %v", row[0])
	}
	// constant column keeps a unit scale
	if row[1] != 0 {
		t.Errorf("income: %v", row[1])
	}
	// Education_Level categories sorted: A, B
	if row[7] != 1 || row[8] != 0 {
		t.Errorf("one-hot: %v", row[7:9])
	}

	unseen := p.Transform(Input{EducationLevel: "Z"})
	if unseen[7] != 0 || unseen[8] != 0 {
		t.Errorf("unseen category: %v", unseen[7:9])
	}
}

func TestTrainAndPredict(t *testing.T) {
	recs := sampleRecords(t, 90)
	m, metrics, err := Train(recs, DefaultTrainOptions)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if metrics.Accuracy < 0.95 {
		t.Errorf("accuracy %.2f", metrics.Accuracy)
	}
	if metrics.PerClass[0] != 30 || metrics.Rows != 90 {
		t.Errorf("metrics %+v", metrics)
	}

	p := m.Predict(recs[2].Input)
	if p.Category != HighRisk {
		t.Errorf("predicted %s", p.Category)
	}
	sum := 0.0
	for _, v := range p.Probabilities {
		sum += v
	}
	if len(p.Probabilities) != 3 || sum < 0.999 || sum > 1.001 {
		t.Errorf("probabilities %v", p.Probabilities)
	}
}

func TestTrainNeedsTwoClasses(t *testing.T) {
	recs := sampleRecords(t, 3)[:1]
	if _, _, err := Train(recs, DefaultTrainOptions); !errors.Is(err, ErrSingleClass) {
		t.Errorf("got %v", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	recs := sampleRecords(t, 30)
	m, _, err := Train(recs, TrainOptions{Iterations: 200})
	if err != nil {
		t.Fatal(err)
	}
	snap := m.Snapshot()
	back, err := snap.Model()
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	a, b := m.Predict(recs[1].Input), back.Predict(recs[1].Input)
	if a.Category != b.Category || a.Probabilities[0] != b.Probabilities[0] {
		t.Errorf("%+v != %+v", a, b)
	}

	snap.Weights = snap.Weights[1:]
	if _, err := snap.Model(); err == nil {
		t.Error("expected corrupt snapshot error")
	}
}

func TestPlotsAndPrune(t *testing.T) {
	dir := t.TempDir()
	p, err := NewPlotter(dir, 3)
	if err != nil {
		t.Fatal(err)
	}
	// stale files that should be pruned first
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, fmt.Sprintf("old%d.png", i))
		os.WriteFile(name, []byte("x"), 0o644)
		stamp := time.Now().Add(-time.Duration(3-i) * time.Hour)
		os.Chtimes(name, stamp, stamp)
	}
	recs := sampleRecords(t, 30)

	names, err := p.Render(PlotIncome, recs)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(dir, n)); err != nil {
			t.Errorf("%s: %v", n, err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 3 {
		t.Errorf("kept %d files", len(entries))
	}

	if _, err := p.Render("weather", recs); !errors.Is(err, ErrUnknownPlot) {
		t.Errorf("unknown kind: %v", err)
	}
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	plots, err := NewPlotter(t.TempDir(), 10)
	if err != nil {
		t.Fatal(err)
	}
	store := &MemStore{}
	svc := NewService(store, store, plots, nil)

	if _, err := svc.Retrain(ctx); !errors.Is(err, ErrNoFiles) {
		t.Errorf("retrain before upload: %v", err)
	}
	if _, err := svc.Predict(Input{}); !errors.Is(err, ErrNotTrained) {
		t.Errorf("predict before train: %v", err)
	}
	if _, err := svc.Visualize(PlotEducation); !errors.Is(err, ErrNoData) {
		t.Errorf("plots before train: %v", err)
	}

	if _, err := svc.Upload(ctx, "survey.csv", strings.NewReader(sampleCSV(60))); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Retrain(ctx)
	if err != nil {
		t.Fatalf("retrain: %v", err)
	}
	if res.Filename != "survey.csv" || res.Metrics.Rows != 60 {
		t.Errorf("result %+v", res)
	}
	if names, err := svc.Visualize(PlotEducation); err != nil || names[0] != "education_count.png" {
		t.Errorf("visualize: %v %v", names, err)
	}

	// a fresh service picks the model back up from the store
	fresh := NewService(store, store, plots, nil)
	if err := fresh.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !fresh.Trained() {
		t.Fatal("not restored")
	}
	if _, err := fresh.Visualize(PlotContraceptive); err != nil {
		t.Errorf("visualize after restore: %v", err)
	}
}
