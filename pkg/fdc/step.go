/*
   Driveback - floppy & QIC-117 tape preservation controller core
   Copyright (c) 2025, the Driveback authors

   This file is part of Driveback.

   Driveback is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Driveback is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Driveback. If not, see <http://www.gnu.org/licenses/>.
*/

package fdc

import (
	"fmt"

	"github.com/retroflux/driveback/pkg/sim"
)

// default step pulse spacing, 3 ms
var defaultStepTicks = sim.Milliseconds(3)

/*
	StepController issues head movement pulses toward a target cylinder.
	It tracks the logical cylinder the protocol talks about and the
	physical track the head actually sits on; under double stepping the
	two differ by a factor of two. A new seek is rejected while one is in
	flight, callers wait for OutSeekDone.
*/
type StepController struct {
	OutStep      bool // pulse strobe
	OutDirection bool // true steps inward, toward higher tracks
	OutBusy      bool
	OutSeekDone  bool // strobe
	OutAtTrack0  bool

	stepTicks  int
	doubleStep bool

	logical   int
	physical  int
	target    int // target logical cylinder
	targetPhy int
	countdown int
}

//
func NewStepController() *StepController {
	return &StepController{stepTicks: defaultStepTicks}
}

// Reset drops an in-flight seek, deasserting busy. The head stays on
// whatever physical track it reached; position bookkeeping survives.
func (s *StepController) Reset() {
	s.OutStep = false
	s.OutSeekDone = false
	s.OutBusy = false
	s.target = s.logical
	s.targetPhy = s.physical
	s.countdown = 0
}

// SetStepRate sets the spacing between step pulses, in ticks.
func (s *StepController) SetStepRate(ticks int) {
	if ticks > 0 {
		s.stepTicks = ticks
	}
}

// SetDoubleStep selects two physical pulses per logical cylinder, used
// for 40-track media in an 80-track mechanism.
func (s *StepController) SetDoubleStep(on bool) {
	s.doubleStep = on
}

//
func (s *StepController) DoubleStep() bool {
	return s.doubleStep
}

//
func (s *StepController) Logical() int {
	return s.logical
}

//
func (s *StepController) Physical() int {
	return s.physical
}

//
func (s *StepController) factor() int {
	if s.doubleStep {
		return 2
	}
	return 1
}

// Seek starts moving the head to the given logical cylinder. Rejected
// while a seek is in flight.
func (s *StepController) Seek(cylinder int) error {

	if s.OutBusy {
		return fmt.Errorf("seek rejected, controller busy")
	}
	if cylinder < 0 {
		return fmt.Errorf("illegal cylinder: %d", cylinder)
	}

	s.target = cylinder
	s.targetPhy = cylinder * s.factor()
	s.countdown = 1
	s.OutBusy = true
	return nil
}

// Restore moves the head outward until the physical position is zero.
func (s *StepController) Restore() error {

	if s.OutBusy {
		return fmt.Errorf("restore rejected, controller busy")
	}

	s.target = 0
	s.targetPhy = 0
	s.countdown = 1
	s.OutBusy = true
	return nil
}

//
func (s *StepController) Tick() {

	s.OutStep = false
	s.OutSeekDone = false
	s.OutAtTrack0 = s.physical == 0

	if !s.OutBusy {
		return
	}

	if s.physical == s.targetPhy {
		s.logical = s.target
		s.OutBusy = false
		s.OutSeekDone = true
		s.OutAtTrack0 = s.physical == 0
		return
	}

	if s.countdown--; s.countdown > 0 {
		return
	}
	s.countdown = s.stepTicks

	s.OutDirection = s.targetPhy > s.physical
	s.OutStep = true
	if s.OutDirection {
		s.physical++
	} else {
		s.physical--
	}
}
