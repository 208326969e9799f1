package replay

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/tickcore/internal/core/ecs"
)

// Divergence locates the first difference between run 0 and another run.
type Divergence struct {
	Run   int
	Event int // -1 when the events agree and a digest differs
	Tick  int // -1 when the digests agree
	Want  string
	Got   string
}

func (d *Divergence) String() string {
	switch {
	case d.Event >= 0:
		return fmt.Sprintf("run %d diverged at event %d: want %s, got %s", d.Run, d.Event, d.Want, d.Got)
	case d.Tick >= 0:
		return fmt.Sprintf("run %d diverged at step %d: want digest %s, got %s", d.Run, d.Tick, d.Want, d.Got)
	}
	return fmt.Sprintf("run %d diverged in final state: want %s, got %s", d.Run, d.Want, d.Got)
}

type Report struct {
	Scenario   string
	Runs       int
	Events     int
	Steps      int
	Errors     int // events whose call returned an error, per run
	Final      [32]byte
	Divergence *Divergence
}

// Verify runs the scenario runs times on independent Worlds, concurrently,
// and compares every trace against the first.
func Verify(ctx context.Context, sc *Scenario, runs int, log *zap.Logger) (*Report, error) {
	if runs < 2 {
		return nil, fmt.Errorf("verify needs at least 2 runs, got %d: %w", runs, ecs.ErrInvalidArg)
	}
	if log == nil {
		log = zap.NewNop()
	}
	traces := make([]*Trace, runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range traces {
		g.Go(func() error {
			t, err := Run(gctx, sc, log.With(zap.Int("run", i)))
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			traces[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	base := traces[0]
	rep := &Report{
		Scenario: sc.Name,
		Runs:     runs,
		Events:   len(base.Events),
		Steps:    len(base.Digests),
		Final:    base.Final,
	}
	for _, ev := range base.Events {
		if ev.Err != "" {
			rep.Errors++
		}
	}
	for i := 1; i < runs; i++ {
		if d := compare(base, traces[i]); d != nil {
			d.Run = i
			rep.Divergence = d
			break
		}
	}
	return rep, nil
}

func compare(a, b *Trace) *Divergence {
	for i := 0; i < min(len(a.Events), len(b.Events)); i++ {
		if a.Events[i] != b.Events[i] {
			return &Divergence{Event: i, Tick: -1,
				Want: fmt.Sprintf("%+v", a.Events[i]), Got: fmt.Sprintf("%+v", b.Events[i])}
		}
	}
	if len(a.Events) != len(b.Events) {
		return &Divergence{Event: min(len(a.Events), len(b.Events)), Tick: -1,
			Want: fmt.Sprintf("%d events", len(a.Events)), Got: fmt.Sprintf("%d events", len(b.Events))}
	}
	for i := 0; i < min(len(a.Digests), len(b.Digests)); i++ {
		if a.Digests[i] != b.Digests[i] {
			return &Divergence{Event: -1, Tick: i,
				Want: fmt.Sprintf("%x", a.Digests[i][:8]), Got: fmt.Sprintf("%x", b.Digests[i][:8])}
		}
	}
	if a.Final != b.Final {
		return &Divergence{Event: -1, Tick: -1,
			Want: fmt.Sprintf("%x", a.Final[:8]), Got: fmt.Sprintf("%x", b.Final[:8])}
	}
	return nil
}
