// Package model tracks the lifecycle of an estimation run.
//
// A GMWM fit moves through a fixed sequence of stages:
//
//	Init -> StartingValues -> FirstFit -> ReweightFit* -> CovarianceAndCI -> Done
//
// with Error reachable from every non-terminal stage. StateManager enforces that
// sequence and records the dimensions seen during fitting. It is safe for
// concurrent use, so an estimator can expose its stage while a fit is running.
package model

import (
	"fmt"
	"sync"
)

// Stage is a step of the estimation driver.
type Stage int

const (
	// Init is the stage before any work has been done.
	Init Stage = iota
	// StartingValues derives or validates the initial parameter vector.
	StartingValues
	// FirstFit optimizes under the initial weighting matrix.
	FirstFit
	// ReweightFit refreshes the weighting matrix and re-optimizes. Repeats.
	ReweightFit
	// CovarianceAndCI computes standard errors and confidence bounds.
	CovarianceAndCI
	// Done is terminal: a result is available.
	Done
	// Error is terminal: the run failed.
	Error
)

var stageNames = [...]string{
	Init:            "init",
	StartingValues:  "starting_values",
	FirstFit:        "first_fit",
	ReweightFit:     "reweight_fit",
	CovarianceAndCI: "covariance_and_ci",
	Done:            "done",
	Error:           "error",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Terminal reports whether no further transition is possible.
func (s Stage) Terminal() bool {
	return s == Done || s == Error
}

var transitions = map[Stage][]Stage{
	Init:            {StartingValues},
	StartingValues:  {FirstFit},
	FirstFit:        {ReweightFit, CovarianceAndCI},
	ReweightFit:     {ReweightFit, CovarianceAndCI},
	CovarianceAndCI: {Done},
}

// StateManager holds the current stage of a run.
type StateManager struct {
	mu sync.RWMutex

	stage      Stage
	iterations int

	// Dimensions seen during fitting
	nParams  int
	nScales  int
	nSamples int
}

// NewStateManager returns a manager in the Init stage.
func NewStateManager() *StateManager {
	return &StateManager{stage: Init}
}

// Stage returns the current stage.
func (s *StateManager) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// Transition moves to next, rejecting transitions outside the driver sequence.
// Moving to Error is always allowed from a non-terminal stage.
func (s *StateManager) Transition(next Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stage.Terminal() {
		return fmt.Errorf("illegal transition %s -> %s: run already finished", s.stage, next)
	}
	if next == Error {
		s.stage = Error
		return nil
	}
	for _, allowed := range transitions[s.stage] {
		if allowed == next {
			if next == ReweightFit {
				s.iterations++
			}
			s.stage = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", s.stage, next)
}

// Fail moves to Error. It is a no-op once the run is terminal.
func (s *StateManager) Fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stage.Terminal() {
		s.stage = Error
	}
}

// Iterations returns how many times ReweightFit was entered.
func (s *StateManager) Iterations() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.iterations
}

// IsFitted reports whether the run reached Done.
func (s *StateManager) IsFitted() bool {
	return s.Stage() == Done
}

// Reset returns to Init and clears recorded dimensions.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = Init
	s.iterations = 0
	s.nParams, s.nScales, s.nSamples = 0, 0, 0
}

// SetDimensions records the parameter, scale and sample counts of the run.
func (s *StateManager) SetDimensions(nParams, nScales, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nParams = nParams
	s.nScales = nScales
	s.nSamples = nSamples
}

// Dimensions returns the values recorded by SetDimensions.
func (s *StateManager) Dimensions() (nParams, nScales, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nParams, s.nScales, s.nSamples
}

// RequireFitted returns an error unless the run reached Done.
func (s *StateManager) RequireFitted() error {
	if st := s.Stage(); st != Done {
		return fmt.Errorf("estimation not finished (stage %s)", st)
	}
	return nil
}
