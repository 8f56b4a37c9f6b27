package policy

import (
	"errors"
	"math"
)

// Schedule is a geometric decay toward a floor. It drives epsilon for
// epsilon-greedy selection and temperature for softmax selection.
type Schedule struct {
	Initial float64 `json:"initial"`
	Decay   float64 `json:"decay"`
	Floor   float64 `json:"floor"`
}

// Validate checks the schedule can be applied.
func (s Schedule) Validate() error {
	if s.Initial < 0 {
		return errors.New("exploration initial value cannot be negative")
	}
	if s.Decay <= 0 || s.Decay > 1 {
		return errors.New("exploration decay must be in (0, 1]")
	}
	if s.Floor < 0 {
		return errors.New("exploration floor cannot be negative")
	}
	if s.Floor > s.Initial {
		return errors.New("exploration floor cannot exceed the initial value")
	}
	return nil
}

// Next returns the value after one more episode of decay.
func (s Schedule) Next(current float64) float64 {
	return math.Max(current*s.Decay, s.Floor)
}

// explorer tracks the live exploration value for one policy.
type explorer struct {
	schedule Schedule
	value    float64
}

func (e *explorer) reset(s Schedule) {
	e.schedule = s
	e.value = s.Initial
}

func (e *explorer) decay() {
	e.value = e.schedule.Next(e.value)
}
