package walk

// knightOffsets keeps the enumeration order stable so move lists are
// reproducible for a given seed.
var knightOffsets = [8]Position{
	{X: 2, Y: 1}, {X: -2, Y: -1}, {X: 2, Y: -1}, {X: -2, Y: 1},
	{X: 1, Y: 2}, {X: -1, Y: -2}, {X: 1, Y: -2}, {X: -1, Y: 2},
}

// GenerateMoves returns the legal knight destinations from pos in offset order.
// The result may be empty.
func GenerateMoves(pos Position, cfg BoardConfig) []Position {
	return appendMoves(make([]Position, 0, len(knightOffsets)), pos, cfg)
}

// appendMoves lets the walker reuse one buffer across steps.
func appendMoves(dst []Position, pos Position, cfg BoardConfig) []Position {
	for _, delta := range knightOffsets {
		to := Position{X: pos.X + delta.X, Y: pos.Y + delta.Y}
		if cfg.Torus {
			to = Position{X: wrap(to.X, cfg.Size), Y: wrap(to.Y, cfg.Size)}
		}
		if !cfg.Inside(to) || cfg.IsBlocked(to) {
			continue
		}
		dst = append(dst, to)
	}
	return dst
}

// wrap maps c onto [1, size].
func wrap(c, size int) int {
	if size < 1 {
		return c
	}
	m := (c - 1) % size
	if m < 0 {
		m += size
	}
	return m + 1
}
