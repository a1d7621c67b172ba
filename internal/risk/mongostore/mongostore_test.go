package mongostore

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"nganiriza-api/internal/risk"
)

func setup(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := Connect(ctx, uri)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database("risk_test_" + strings.ReplaceAll(uuid.NewString()[:8], "-", ""))
	t.Cleanup(func() {
		db.Drop(context.Background())
		client.Disconnect(context.Background())
	})
	return New(db)
}

func TestLatestFile(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	if _, _, err := s.Latest(ctx); !errors.Is(err, risk.ErrNoFiles) {
		t.Fatalf("empty bucket: %v", err)
	}
	if _, err := s.Put(ctx, "first.csv", strings.NewReader("a")); err != nil {
		t.Fatal(err)
	}
	// uploadDate has millisecond precision
	time.Sleep(10 * time.Millisecond)
	id, err := s.Put(ctx, "second.csv", strings.NewReader("b,c"))
	if err != nil || id == "" {
		t.Fatalf("put: %q %v", id, err)
	}

	name, data, err := s.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if name != "second.csv" || string(data) != "b,c" {
		t.Errorf("latest: %s %q", name, data)
	}
}

func TestModelRoundTrip(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	if _, err := s.LatestModel(ctx); !errors.Is(err, risk.ErrNoModel) {
		t.Fatalf("empty: %v", err)
	}
	snap := risk.Snapshot{
		Pre:     &risk.Preprocessor{Means: []float64{1}, Scales: []float64{2}},
		Rows:    2,
		Cols:    3,
		Weights: []float64{1, 2, 3, 4, 5, 6},
		Source:  "survey.csv",
		Metrics: risk.Metrics{Accuracy: 0.9, Rows: 40},
	}
	if err := s.SaveModel(ctx, snap); err != nil {
		t.Fatal(err)
	}
	got, err := s.LatestModel(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Source != "survey.csv" || len(got.Weights) != 6 || got.Metrics.Accuracy != 0.9 {
		t.Errorf("got %+v", got)
	}
}
