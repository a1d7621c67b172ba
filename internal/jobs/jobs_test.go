package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type fakeWarmer struct{ got []string }

func (f *fakeWarmer) Warmup(_ context.Context, q []string) int {
	f.got = q
	return len(q) - 1
}

type fakePurger struct {
	tokens, resets int
	err            error
}

func (f *fakePurger) PurgeRefreshTokens(context.Context, time.Time) (int64, error) {
	f.tokens++
	return 3, f.err
}

func (f *fakePurger) PurgePasswordResets(context.Context, time.Time) (int64, error) {
	f.resets++
	return 1, nil
}

func TestSpecsParse(t *testing.T) {
	p := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for _, spec := range []string{WarmupSpec, PurgeSpec} {
		if _, err := p.Parse(spec); err != nil {
			t.Errorf("%q: %v", spec, err)
		}
	}
}

func TestWarmCache(t *testing.T) {
	w := &fakeWarmer{}
	s := New(w, nil, []string{"a", "b"}, zap.NewNop())
	if n := s.WarmCache(context.Background()); n != 1 {
		t.Errorf("warmed %d", n)
	}
	if len(w.got) != 2 {
		t.Errorf("queries: %v", w.got)
	}
}

func TestPurgeContinuesAfterError(t *testing.T) {
	p := &fakePurger{err: errors.New("db down")}
	s := New(nil, p, nil, zap.NewNop())
	s.Purge(context.Background())
	if p.tokens != 1 || p.resets != 1 {
		t.Errorf("calls: %+v", p)
	}
}

func TestStartStop(t *testing.T) {
	s := New(&fakeWarmer{}, &fakePurger{}, nil, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(s.cron.Entries()) != 2 {
		t.Errorf("entries: %d", len(s.cron.Entries()))
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
