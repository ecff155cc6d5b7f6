package scenario

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"knightwalk/walk"
)

// Result is one walk of a scenario: a step count from one start square.
type Result struct {
	Scenario  string
	StartName string
	Start     walk.Position
	Steps     int
	Seed      int64
	Visits    walk.VisitMap
	Rings     []walk.RingStat
}

func (r Result) Unique() int {
	return r.Visits.Unique()
}

// Runner executes scenario walks in parallel. Every walk draws from its own
// source, seeded from Seed, the scenario name and the walk's index, so output
// does not depend on scheduling.
type Runner struct {
	Seed        int64
	Parallelism int
	Logger      *slog.Logger
}

func NewRunner(seed int64) *Runner {
	return &Runner{
		Seed:        seed,
		Parallelism: runtime.GOMAXPROCS(0),
		Logger:      slog.Default(),
	}
}

type job struct {
	index int
	steps int
	start Start
	pos   walk.Position
}

// Run simulates every (steps, start) pair of sc and returns the results in
// declaration order: steps outermost, then starts.
func (r *Runner) Run(ctx context.Context, sc Scenario) ([]Result, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	cfg, err := sc.Board()
	if err != nil {
		return nil, err
	}
	starts, err := sc.StartPositions(cfg)
	if err != nil {
		return nil, err
	}

	var jobs []job
	for _, steps := range sc.Steps {
		for i, st := range sc.Starts {
			jobs = append(jobs, job{index: len(jobs), steps: steps, start: st, pos: starts[i]})
		}
	}

	logger := r.logger().With("scenario", sc.Name)
	base := r.scenarioSeed(sc.Name)
	results := make([]Result, len(jobs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Parallelism, 1))
	for _, j := range jobs {
		j := j // per-iteration copy; go directive is below 1.22
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			seed := base + int64(j.index)
			started := time.Now()
			visits := walk.Simulate(j.steps, j.pos, cfg, walk.NewRand(seed))
			rings, err := walk.Analyze(j.steps, visits, cfg.Size)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			results[j.index] = Result{
				Scenario:  sc.Name,
				StartName: j.start.Label(),
				Start:     j.pos,
				Steps:     j.steps,
				Seed:      seed,
				Visits:    visits,
				Rings:     rings,
			}
			logger.Debug("walk finished",
				"start", j.start.Label(),
				"steps", j.steps,
				"unique", visits.Unique(),
				"elapsed", time.Since(started))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunAll runs the scenarios of f one after another.
func (r *Runner) RunAll(ctx context.Context, f File) (map[string][]Result, error) {
	out := make(map[string][]Result, len(f.Scenarios))
	for _, sc := range f.Scenarios {
		results, err := r.Run(ctx, sc)
		if err != nil {
			return nil, err
		}
		out[sc.Name] = results
	}
	return out, nil
}

func (r *Runner) scenarioSeed(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return r.Seed ^ int64(h.Sum64()>>1)
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// WriteResults prints each walk's ring table followed by its distinct square count.
func WriteResults(w io.Writer, results []Result) error {
	for _, res := range results {
		if _, err := fmt.Fprintf(w, "\nSimulation with %d steps and knight starting at %s:\n\n", res.Steps, res.StartName); err != nil {
			return err
		}
		if err := walk.WriteReport(w, res.Rings); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "Unique squares visited: %d.\n", res.Unique()); err != nil {
			return err
		}
	}
	return nil
}
