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
	"testing"
)

// runs the controller until the seek-done strobe, counting step pulses
func runSeek(t *testing.T, s *StepController, budget int) int {

	t.Helper()

	steps := 0
	for i := 0; i < budget; i++ {
		s.Tick()
		if s.OutStep {
			steps++
		}
		if s.OutSeekDone {
			return steps
		}
	}
	t.Fatalf("seek never completed")
	return 0
}

//
func TestStepControllerSeek(t *testing.T) {

	s := NewStepController()
	s.SetStepRate(5)

	if err := s.Seek(10); err != nil {
		t.Fatalf("seek rejected: %v", err)
	}

	steps := runSeek(t, s, 1000)

	if steps != 10 {
		t.Errorf("%d step pulses, want 10", steps)
	}
	if s.Logical() != 10 || s.Physical() != 10 {
		t.Errorf("position %d/%d, want 10/10", s.Logical(), s.Physical())
	}
	if s.OutAtTrack0 {
		t.Errorf("track zero asserted at cylinder 10")
	}
}

//
func TestStepControllerDoubleStep(t *testing.T) {

	s := NewStepController()
	s.SetStepRate(5)
	s.SetDoubleStep(true)

	if err := s.Seek(10); err != nil {
		t.Fatalf("seek rejected: %v", err)
	}

	steps := runSeek(t, s, 1000)

	if steps != 20 {
		t.Errorf("%d step pulses under double stepping, want 20", steps)
	}
	if s.Logical() != 10 || s.Physical() != 20 {
		t.Errorf("position %d/%d, want 10/20", s.Logical(), s.Physical())
	}
}

//
func TestStepControllerRestore(t *testing.T) {

	s := NewStepController()
	s.SetStepRate(5)

	if err := s.Seek(7); err != nil {
		t.Fatalf("seek rejected: %v", err)
	}
	runSeek(t, s, 1000)

	if err := s.Restore(); err != nil {
		t.Fatalf("restore rejected: %v", err)
	}
	runSeek(t, s, 1000)

	if s.Physical() != 0 || !s.OutAtTrack0 {
		t.Errorf("restore left head at %d, track0 %v",
			s.Physical(), s.OutAtTrack0)
	}
}

//
func TestStepControllerBusyReject(t *testing.T) {

	s := NewStepController()
	s.SetStepRate(5)

	if err := s.Seek(10); err != nil {
		t.Fatalf("seek rejected: %v", err)
	}
	s.Tick()

	if err := s.Seek(3); err == nil {
		t.Fatalf("second seek accepted while busy")
	}
	if err := s.Restore(); err == nil {
		t.Fatalf("restore accepted while busy")
	}
}

//
func TestTrackWidthRecommendsDouble(t *testing.T) {

	a := NewTrackWidthAnalyzer()

	// 40 track medium read in an 80 track mechanism: recovered cylinder
	// is half the physical track
	for phy := 2; phy <= 20 && !a.Complete(); phy += 2 {
		a.Observe(phy/2, phy)
	}

	if !a.Complete() {
		t.Fatalf("analyzer never completed")
	}
	if !a.Recommended() {
		t.Fatalf("double stepping not recommended for narrow medium")
	}
}

//
func TestTrackWidthMatchingStock(t *testing.T) {

	a := NewTrackWidthAnalyzer()

	for phy := 1; phy <= 20 && !a.Complete(); phy++ {
		a.Observe(phy, phy)
	}

	if !a.Complete() {
		t.Fatalf("analyzer never completed")
	}
	if a.Recommended() {
		t.Fatalf("double stepping recommended for matching medium")
	}
}

// physical track zero is ambiguous between the two geometries and must
// not count
func TestTrackWidthIgnoresTrackZero(t *testing.T) {

	a := NewTrackWidthAnalyzer()

	for i := 0; i < 100; i++ {
		a.Observe(0, 0)
	}
	if a.Complete() {
		t.Fatalf("analyzer completed on track zero samples alone")
	}
}

//
func TestTrackWidthInconsistentRestarts(t *testing.T) {

	a := NewTrackWidthAnalyzer()

	a.Observe(2, 4)
	a.Observe(3, 6)
	a.Observe(9, 4) // neither half nor equal
	for phy := 2; phy <= 20 && !a.Complete(); phy += 2 {
		a.Observe(phy/2, phy)
	}

	if !a.Complete() || !a.Recommended() {
		t.Fatalf("analyzer did not recover from an inconsistent sample")
	}
}
