// Package proximity computes the nearest active reminder to a location fix.
package proximity

import (
	"math"

	"github.com/roach88/georemind/internal/location"
	"github.com/roach88/georemind/internal/reminder"
)

// EarthRadiusMeters is the mean Earth radius used by Haversine.
const EarthRadiusMeters = 6371008.8

// kilometersPastBoundary scales radius-adjusted meters into the displayed value.
const kilometersPastBoundary = 0.001

// DistanceFunc returns the distance in meters between two coordinates.
type DistanceFunc func(lat1, lng1, lat2, lng2 float64) float64

// Haversine returns the great-circle distance in meters.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(a)))
}

// State is the outcome of a recompute. Nearest is nil and Valid is false
// when there is no active reminder or no fix.
type State struct {
	Nearest   *reminder.Reminder
	RawMeters float64
	Distance  float64
	Valid     bool
}

// DisplayDistance converts a raw distance into the displayed value: zero
// inside the geofence, otherwise the meters past the boundary times 0.001.
// Never negative.
func DisplayDistance(rawMeters, radiusMeters float64) float64 {
	past := rawMeters - radiusMeters
	if past < 0 || math.IsNaN(past) {
		return 0
	}
	return past * kilometersPastBoundary
}

// Calculator selects the nearest active reminder.
type Calculator struct {
	radius   float64
	distance DistanceFunc
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithDistanceFunc replaces the great-circle distance, e.g. with a
// platform-provided planar distance.
func WithDistanceFunc(fn DistanceFunc) CalculatorOption {
	return func(c *Calculator) {
		c.distance = fn
	}
}

// NewCalculator creates a Calculator for geofences of the given radius.
func NewCalculator(radiusMeters float64, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		radius:   radiusMeters,
		distance: Haversine,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recompute returns the nearest reminder of active to fix.
//
// Ties on exactly equal raw distance go to the reminder that appears first
// in active.
func (c *Calculator) Recompute(active []reminder.Reminder, fix *location.Fix) State {
	if len(active) == 0 || fix == nil {
		return State{}
	}

	best := -1
	bestMeters := math.Inf(1)
	for i, r := range active {
		d := c.distance(fix.Latitude, fix.Longitude, r.Latitude, r.Longitude)
		if d < bestMeters {
			best = i
			bestMeters = d
		}
	}
	if best < 0 {
		return State{}
	}

	nearest := active[best]
	return State{
		Nearest:   &nearest,
		RawMeters: bestMeters,
		Distance:  DisplayDistance(bestMeters, c.radius),
		Valid:     true,
	}
}
