package metrics

import (
	"errors"
	"testing"
)

func failing[T any](name string) Strategy[T] {
	return Strategy[T]{Name: name, Try: func() (T, error) {
		var zero T
		return zero, errors.New("synthetic failure")
	}}
}

func succeeding[T any](name string, value T) Strategy[T] {
	return Strategy[T]{Name: name, Try: func() (T, error) {
		return value, nil
	}}
}

func TestChainFirstSuccessWins(t *testing.T) {
	chain := Chain[int]{
		Metric: "test",
		Strategies: []Strategy[int]{
			succeeding("first", 1),
			succeeding("second", 2),
		},
		Default: -1,
	}

	value, winner := chain.Collect()
	if value != 1 || winner != "first" {
		t.Errorf("Collect() = (%d, %q), want (1, first)", value, winner)
	}
}

func TestChainFallsThroughFailures(t *testing.T) {
	chain := Chain[int]{
		Metric: "test",
		Strategies: []Strategy[int]{
			failing[int]("first"),
			failing[int]("second"),
			succeeding("third", 3),
		},
		Default: -1,
	}

	value, winner := chain.Collect()
	if value != 3 || winner != "third" {
		t.Errorf("Collect() = (%d, %q), want (3, third)", value, winner)
	}
}

func TestChainAllFailYieldsDefault(t *testing.T) {
	chain := Chain[int]{
		Metric: "test",
		Strategies: []Strategy[int]{
			failing[int]("first"),
			failing[int]("second"),
		},
		Default: 42,
	}

	// Deterministic: repeated calls under all-failing conditions always
	// return the exact documented default.
	for i := 0; i < 3; i++ {
		value, winner := chain.Collect()
		if value != 42 || winner != "" {
			t.Errorf("Collect() #%d = (%d, %q), want (42, \"\")", i, value, winner)
		}
	}
}

func TestChainAbsorbsPanic(t *testing.T) {
	chain := Chain[string]{
		Metric: "test",
		Strategies: []Strategy[string]{
			{Name: "panics", Try: func() (string, error) { panic("probe exploded") }},
			succeeding("survivor", "ok"),
		},
		Default: "default",
	}

	value, winner := chain.Collect()
	if value != "ok" || winner != "survivor" {
		t.Errorf("Collect() = (%q, %q), want (ok, survivor)", value, winner)
	}
}

func TestChainLogsFailures(t *testing.T) {
	var logged []string
	chain := Chain[int]{
		Metric: "cpu_free_percent",
		Strategies: []Strategy[int]{
			failing[int]("broken"),
		},
		Default: 50,
		LogFn:   func(level, msg string) { logged = append(logged, level+": "+msg) },
	}

	chain.Collect()
	if len(logged) != 2 {
		t.Fatalf("logged %d messages, want strategy failure + default notice", len(logged))
	}
}

func TestChainNoStrategiesYieldsDefault(t *testing.T) {
	chain := Chain[float64]{Metric: "empty", Default: 50.0}
	value, winner := chain.Collect()
	if value != 50.0 || winner != "" {
		t.Errorf("Collect() = (%v, %q), want (50, \"\")", value, winner)
	}
}
