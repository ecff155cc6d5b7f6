package scenario

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"knightwalk/walk"
)

// DefaultSeed reproduces the published exercise tables.
const DefaultSeed int64 = 2025

var ErrUnknownScenario = errors.New("unknown scenario")

var validate = validator.New(validator.WithRequiredStructEnabled())

// File is the on-disk shape of a scenario set.
//
//	seed: 2025
//	scenarios:
//	  - name: e.1
//	    board_size: 8
//	    blocked: [d4]
//	    steps: [100, 10000]
//	    starts:
//	      - {name: b1, square: b1}
type File struct {
	Seed      int64      `yaml:"seed"`
	Scenarios []Scenario `yaml:"scenarios" validate:"required,min=1,dive"`
}

type Scenario struct {
	Name      string   `yaml:"name" validate:"required"`
	BoardSize int      `yaml:"board_size" validate:"gte=1,lte=1000"`
	Torus     bool     `yaml:"torus"`
	Blocked   []string `yaml:"blocked"`
	Steps     []int    `yaml:"steps" validate:"required,min=1,dive,gte=1"`
	Starts    []Start  `yaml:"starts" validate:"required,min=1,dive"`
}

type Start struct {
	Name   string `yaml:"name"`
	Square string `yaml:"square" validate:"required"`
}

// Label is the display name, falling back to the square itself.
func (s Start) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Square
}

// Board builds the walk configuration and checks that every start square is
// on the board.
func (s Scenario) Board() (walk.BoardConfig, error) {
	blocked, err := walk.ParsePositions(s.Blocked)
	if err != nil {
		return walk.BoardConfig{}, fmt.Errorf("scenario %s: blocked squares: %w", s.Name, err)
	}
	cfg, err := walk.NewBoardConfig(s.BoardSize, blocked, s.Torus)
	if err != nil {
		return walk.BoardConfig{}, fmt.Errorf("scenario %s: %w", s.Name, err)
	}
	return cfg, nil
}

// StartPositions resolves the start squares against cfg.
func (s Scenario) StartPositions(cfg walk.BoardConfig) ([]walk.Position, error) {
	out := make([]walk.Position, 0, len(s.Starts))
	for _, st := range s.Starts {
		p, err := walk.ParsePosition(st.Square)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: start %s: %w", s.Name, st.Label(), err)
		}
		if !cfg.Inside(p) {
			return nil, fmt.Errorf("scenario %s: start %s: %w: %s is off a %dx%d board",
				s.Name, st.Label(), walk.ErrInvalidPosition, walk.FormatPosition(p), cfg.Size, cfg.Size)
		}
		out = append(out, p)
	}
	return out, nil
}

func (s Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}
	cfg, err := s.Board()
	if err != nil {
		return err
	}
	_, err = s.StartPositions(cfg)
	return err
}

func (f File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid scenario file: %w", err)
	}
	seen := make(map[string]bool, len(f.Scenarios))
	for _, sc := range f.Scenarios {
		if seen[sc.Name] {
			return fmt.Errorf("invalid scenario file: duplicate scenario %q", sc.Name)
		}
		seen[sc.Name] = true
		if err := sc.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the scenario called name.
func (f File) Find(name string) (Scenario, error) {
	for _, sc := range f.Scenarios {
		if sc.Name == name {
			return sc, nil
		}
	}
	return Scenario{}, fmt.Errorf("%w: %q", ErrUnknownScenario, name)
}

// Parse decodes and validates a YAML scenario file. A missing seed falls
// back to DefaultSeed; a missing board size to walk.DefaultBoardSize.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse scenario file: %w", err)
	}
	if f.Seed == 0 {
		f.Seed = DefaultSeed
	}
	for i := range f.Scenarios {
		if f.Scenarios[i].BoardSize == 0 {
			f.Scenarios[i].BoardSize = walk.DefaultBoardSize
		}
	}
	if err := f.Validate(); err != nil {
		return File{}, err
	}
	return f, nil
}

func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read scenario file: %w", err)
	}
	return Parse(data)
}
