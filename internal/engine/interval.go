package engine

import (
	"errors"
	"time"
)

// ErrIntervalOutOfRange is returned by SetInterval for values outside Bounds.
var ErrIntervalOutOfRange = errors.New("interval out of range")

const (
	slowRatio  = 0.2
	fastRatio  = 0.05
	growFactor = 1.5
	// shrinkFactor is applied when cycles are cheap relative to the interval.
	shrinkFactor = 0.8
)

// Bounds limits the engine interval.
type Bounds struct {
	Min time.Duration
	Max time.Duration
}

// DefaultBounds are five minutes to two hours.
var DefaultBounds = Bounds{Min: 5 * time.Minute, Max: 2 * time.Hour}

// Contains reports whether d lies within the bounds, inclusive.
func (b Bounds) Contains(d time.Duration) bool {
	return d >= b.Min && d <= b.Max
}

func (b Bounds) clamp(d time.Duration) time.Duration {
	if d < b.Min {
		return b.Min
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// NextInterval is the engine's feedback controller. ratio is the last
// cycle's processing time divided by current. Above 0.2 the interval grows by
// half; below 0.05, and only when there were users to process, it shrinks by
// a fifth. The result is clamped to bounds.
func NextInterval(current time.Duration, ratio float64, users int, bounds Bounds) time.Duration {
	switch {
	case ratio > slowRatio:
		return bounds.clamp(time.Duration(float64(current) * growFactor))
	case ratio < fastRatio && users > 0:
		return bounds.clamp(time.Duration(float64(current) * shrinkFactor))
	default:
		return current
	}
}
