package walk

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const DefaultBoardSize = 8

var (
	ErrInvalidBoardSize = errors.New("invalid board size")
	ErrInvalidStepCount = errors.New("invalid step count")
	ErrInvalidPosition  = errors.New("invalid position")
)

// Position is a 1-indexed square; X is the file, Y the rank.
type Position struct {
	X int
	Y int
}

type BoardConfig struct {
	Size    int
	Blocked map[Position]struct{}
	Torus   bool
}

// NewBoardConfig builds a config with its own blocked set. Blocked squares
// outside the board are kept; they can never match a destination.
func NewBoardConfig(size int, blocked []Position, torus bool) (BoardConfig, error) {
	if size < 1 {
		return BoardConfig{}, fmt.Errorf("%w: %d", ErrInvalidBoardSize, size)
	}
	cfg := BoardConfig{
		Size:    size,
		Blocked: make(map[Position]struct{}, len(blocked)),
		Torus:   torus,
	}
	for _, p := range blocked {
		cfg.Blocked[p] = struct{}{}
	}
	return cfg, nil
}

func (c BoardConfig) IsBlocked(p Position) bool {
	_, ok := c.Blocked[p]
	return ok
}

func (c BoardConfig) Inside(p Position) bool {
	return p.X >= 1 && p.X <= c.Size && p.Y >= 1 && p.Y <= c.Size
}

// ParsePosition accepts algebraic notation ("b1") or explicit coordinates ("2,1").
func ParsePosition(token string) (Position, error) {
	s := strings.ToLower(strings.TrimSpace(token))
	if s == "" {
		return Position{}, fmt.Errorf("%w: empty square", ErrInvalidPosition)
	}

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		if len(parts) != 2 {
			return Position{}, fmt.Errorf("%w: %q, want x,y", ErrInvalidPosition, token)
		}
		x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
		y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
		if errX != nil || errY != nil || x < 1 || y < 1 {
			return Position{}, fmt.Errorf("%w: %q, coordinates must be positive integers", ErrInvalidPosition, token)
		}
		return Position{X: x, Y: y}, nil
	}

	file := s[0]
	if file < 'a' || file > 'z' {
		return Position{}, fmt.Errorf("%w: %q, file must be a-z", ErrInvalidPosition, token)
	}
	rank, err := strconv.Atoi(s[1:])
	if err != nil || rank < 1 {
		return Position{}, fmt.Errorf("%w: %q, rank must be a positive integer", ErrInvalidPosition, token)
	}
	return Position{X: int(file-'a') + 1, Y: rank}, nil
}

// ParsePositions parses every token, stopping at the first bad one.
func ParsePositions(list []string) ([]Position, error) {
	out := make([]Position, 0, len(list))
	for _, token := range list {
		p, err := ParsePosition(token)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// FormatPosition renders algebraic notation when the file fits in a-z.
func FormatPosition(p Position) string {
	if p.X >= 1 && p.X <= 26 && p.Y >= 1 {
		return fmt.Sprintf("%c%d", 'a'+p.X-1, p.Y)
	}
	return fmt.Sprintf("%d,%d", p.X, p.Y)
}

func (p Position) String() string {
	return FormatPosition(p)
}
