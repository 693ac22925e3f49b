// Package metrics collects per-category resource measurements.
//
// Device introspection differs wildly across the platforms the agent runs on
// (desktop Linux, macOS, Android/Termux), and the permission model on mobile
// often forbids the first-choice API. Each metric is therefore an ordered
// chain of named strategies: the first one that returns a value wins, and
// when every strategy fails the chain yields a documented safe default. A
// collection failure never escapes a chain.
package metrics

import "fmt"

// Strategy is a single named measurement attempt for a metric.
type Strategy[T any] struct {
	// Name identifies the strategy for provenance and logging
	Name string

	// Try performs the measurement. A non-nil error means "move on to the
	// next strategy"; it is never surfaced past the chain.
	Try func() (T, error)
}

// Chain is an ordered list of strategies for one metric, tried
// highest-priority first, with a safe default when all of them fail.
type Chain[T any] struct {
	// Metric names the measured quantity, for logging only
	Metric string

	// Strategies in priority order, highest first
	Strategies []Strategy[T]

	// Default is returned when every strategy fails
	Default T

	// LogFn receives per-strategy failure notices (optional)
	LogFn func(level, msg string)
}

// Collect runs the chain and returns the winning value together with the
// name of the strategy that produced it. The name is empty when the default
// was used. A panicking strategy counts as a failed one.
func (c Chain[T]) Collect() (T, string) {
	for _, s := range c.Strategies {
		value, err := tryStrategy(s)
		if err == nil {
			return value, s.Name
		}
		c.log("debug", "%s: strategy %s failed: %v", c.Metric, s.Name, err)
	}
	c.log("warning", "%s: all strategies failed, using default", c.Metric)
	return c.Default, ""
}

// tryStrategy invokes one strategy, converting a panic into an error so a
// misbehaving probe cannot abort the sampling cycle.
func tryStrategy[T any](s Strategy[T]) (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name, r)
		}
	}()
	return s.Try()
}

func (c Chain[T]) log(level, format string, args ...any) {
	if c.LogFn != nil {
		c.LogFn(level, fmt.Sprintf(format, args...))
	}
}
