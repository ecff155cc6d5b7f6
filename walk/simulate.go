package walk

import (
	"math/rand"
)

// Rand is the only randomness the walk consumes: one Intn call per move.
// *rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// VisitMap counts how often each square was occupied.
type VisitMap map[Position]int

func (v VisitMap) Total() int {
	total := 0
	for _, n := range v {
		total += n
	}
	return total
}

func (v VisitMap) Unique() int {
	return len(v)
}

func (v VisitMap) Clone() VisitMap {
	out := make(VisitMap, len(v))
	for p, n := range v {
		out[p] = n
	}
	return out
}

// Walker advances a knight one random move at a time. It is not safe for
// concurrent use.
type Walker struct {
	cfg    BoardConfig
	rng    Rand
	pos    Position
	visits VisitMap
	moves  []Position
	steps  int
	stuck  bool
}

// NewWalker places the knight on start and counts it as the first visit.
// start is not checked against the board or the blocked set.
func NewWalker(start Position, cfg BoardConfig, rng Rand) *Walker {
	return &Walker{
		cfg:    cfg,
		rng:    rng,
		pos:    start,
		visits: VisitMap{start: 1},
		moves:  make([]Position, 0, len(knightOffsets)),
	}
}

// Step moves to a uniformly chosen legal destination. It returns false, and
// leaves the walk unchanged, once the knight has no legal move.
func (w *Walker) Step() (Position, bool) {
	if w.stuck {
		return w.pos, false
	}
	w.moves = appendMoves(w.moves[:0], w.pos, w.cfg)
	if len(w.moves) == 0 {
		w.stuck = true
		return w.pos, false
	}
	w.pos = w.moves[w.rng.Intn(len(w.moves))]
	w.visits[w.pos]++
	w.steps++
	return w.pos, true
}

func (w *Walker) Position() Position { return w.pos }
func (w *Walker) Steps() int         { return w.steps }
func (w *Walker) Stuck() bool        { return w.stuck }
func (w *Walker) Board() BoardConfig { return w.cfg }

// Visits returns a copy of the visit counts so far.
func (w *Walker) Visits() VisitMap {
	return w.visits.Clone()
}

// Simulate runs a walk of steps move attempts from start. A stuck knight
// keeps every remaining step on its current square, so the counts always
// total steps+1.
func Simulate(steps int, start Position, cfg BoardConfig, rng Rand) VisitMap {
	w := NewWalker(start, cfg, rng)
	for i := 0; i < steps; i++ {
		if _, ok := w.Step(); !ok {
			w.visits[w.pos] += steps - i
			break
		}
	}
	return w.visits
}
