package risk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNoFiles    = errors.New("risk: no files uploaded")
	ErrNoModel    = errors.New("risk: no saved model")
	ErrNotTrained = errors.New("risk: model not trained")
	ErrNoData     = errors.New("risk: no training data")
)

// FileStore keeps uploaded training files.
type FileStore interface {
	Put(ctx context.Context, name string, r io.Reader) (id string, err error)
	// Latest returns the most recently uploaded file, or ErrNoFiles.
	Latest(ctx context.Context) (name string, data []byte, err error)
}

// ModelStore persists trained models so a restart keeps serving them.
type ModelStore interface {
	SaveModel(ctx context.Context, s Snapshot) error
	// LatestModel returns the newest snapshot, or ErrNoModel.
	LatestModel(ctx context.Context) (*Snapshot, error)
}

type RetrainResult struct {
	Filename  string    `json:"filename"`
	Metrics   Metrics   `json:"metrics"`
	TrainedAt time.Time `json:"trained_at"`
}

// Service owns the current model. Retrain swaps it under the write lock.
type Service struct {
	files  FileStore
	models ModelStore // may be nil
	plots  *Plotter
	opts   TrainOptions
	log    *zap.Logger

	mu    sync.RWMutex
	model *Model
	data  []Record
}

func NewService(files FileStore, models ModelStore, plots *Plotter, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{files: files, models: models, plots: plots, opts: DefaultTrainOptions, log: log}
}

// Restore loads the latest persisted model, if any.
func (s *Service) Restore(ctx context.Context) error {
	if s.models == nil {
		return nil
	}
	snap, err := s.models.LatestModel(ctx)
	if errors.Is(err, ErrNoModel) {
		return nil
	}
	if err != nil {
		return err
	}
	m, err := snap.Model()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.model, s.data = m, snap.Training
	s.mu.Unlock()
	s.log.Info("model restored", zap.String("source", snap.Source), zap.Float64("accuracy", snap.Metrics.Accuracy))
	return nil
}

func (s *Service) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	id, err := s.files.Put(ctx, name, r)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	s.log.Info("file uploaded", zap.String("filename", name), zap.String("file_id", id))
	return id, nil
}

// Retrain fits a new model on the most recent upload.
func (s *Service) Retrain(ctx context.Context) (RetrainResult, error) {
	name, data, err := s.files.Latest(ctx)
	if err != nil {
		return RetrainResult{}, err
	}
	recs, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return RetrainResult{}, fmt.Errorf("parse %s: %w", name, err)
	}
	m, metrics, err := Train(recs, s.opts)
	if err != nil {
		return RetrainResult{}, err
	}

	res := RetrainResult{Filename: name, Metrics: metrics, TrainedAt: time.Now().UTC()}
	if s.models != nil {
		snap := m.Snapshot()
		snap.Metrics, snap.Source, snap.Training = metrics, name, recs
		if err := s.models.SaveModel(ctx, snap); err != nil {
			s.log.Warn("persist model", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.model, s.data = m, recs
	s.mu.Unlock()

	s.log.Info("model retrained",
		zap.String("filename", name),
		zap.Int("rows", metrics.Rows),
		zap.Float64("accuracy", metrics.Accuracy),
	)
	return res, nil
}

func (s *Service) Predict(in Input) (Prediction, error) {
	s.mu.RLock()
	m := s.model
	s.mu.RUnlock()
	if m == nil {
		return Prediction{}, ErrNotTrained
	}
	return m.Predict(in), nil
}

// Visualize renders the charts for kind from the current training data.
func (s *Service) Visualize(kind string) ([2]string, error) {
	switch kind {
	case PlotEducation, PlotContraceptive, PlotIncome:
	default:
		return [2]string{}, ErrUnknownPlot
	}
	s.mu.RLock()
	data := s.data
	s.mu.RUnlock()
	if len(data) == 0 {
		return [2]string{}, ErrNoData
	}
	return s.plots.Render(kind, data)
}

func (s *Service) Trained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}
