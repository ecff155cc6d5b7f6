package walk

import (
	"fmt"
	"sort"
)

// RingStat aggregates the squares at one distance from the board edge.
type RingStat struct {
	Ring         int     `json:"ring"`
	Squares      int     `json:"squares"`
	Visits       int     `json:"visits"`
	AvgPerSquare float64 `json:"avg_per_square"`
	PctOfSteps   float64 `json:"pct_of_steps"`
}

// RingDistance counts layers in from the nearest edge; border squares are ring 1.
func RingDistance(x, y, size int) int {
	return min(x, y, size-x+1, size-y+1)
}

// Analyze buckets every square of the board by ring distance, ordered from
// the border inward.
func Analyze(steps int, visits VisitMap, size int) ([]RingStat, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStepCount, steps)
	}
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBoardSize, size)
	}

	buckets := make(map[int]*RingStat)
	for x := 1; x <= size; x++ {
		for y := 1; y <= size; y++ {
			ring := RingDistance(x, y, size)
			b, ok := buckets[ring]
			if !ok {
				b = &RingStat{Ring: ring}
				buckets[ring] = b
			}
			b.Squares++
			b.Visits += visits[Position{X: x, Y: y}]
		}
	}

	stats := make([]RingStat, 0, len(buckets))
	for _, b := range buckets {
		b.AvgPerSquare = float64(b.Visits) / float64(b.Squares)
		b.PctOfSteps = float64(b.Visits) / float64(steps) * 100
		stats = append(stats, *b)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Ring < stats[j].Ring })
	return stats, nil
}
