package scenario

func exerciseSteps() []int {
	return []int{100, 10000, 1000000}
}

// Defaults returns the classic random knight's walk exercises.
func Defaults() File {
	b1 := []Start{{Name: "b1", Square: "b1"}}
	return File{
		Seed: DefaultSeed,
		Scenarios: []Scenario{
			{Name: "c", BoardSize: 8, Steps: exerciseSteps(), Starts: b1},
			{Name: "d", BoardSize: 8, Steps: exerciseSteps(), Starts: []Start{
				{Name: "d4", Square: "d4"},
				{Name: "a1", Square: "a1"},
			}},
			// A second piece on d4, then on d4 and e5.
			{Name: "e.1", BoardSize: 8, Blocked: []string{"d4"}, Steps: exerciseSteps(), Starts: b1},
			{Name: "e.2", BoardSize: 8, Blocked: []string{"d4", "e5"}, Steps: exerciseSteps(), Starts: []Start{
				{Name: "a1", Square: "a1"},
			}},
			{Name: "f", BoardSize: 50, Steps: exerciseSteps(), Starts: b1},
			{Name: "g", BoardSize: 8, Torus: true, Steps: exerciseSteps(), Starts: b1},
		},
	}
}
