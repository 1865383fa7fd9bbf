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

package signal

import (
	"testing"
)

//
func TestProbeCounts(t *testing.T) {

	var p FluxProbe

	// transitions spaced 20 ticks apart, one index pulse
	for i := 0; i < 200; i++ {
		p.InFlux = i > 0 && i%20 == 0
		p.InIndex = i == 50
		p.Tick()
	}

	s := p.Snapshot()

	if s.Transitions != 9 {
		t.Errorf("%d transitions, want 9", s.Transitions)
	}
	if s.Indexes != 1 {
		t.Errorf("%d index pulses, want 1", s.Indexes)
	}

	// an interval of 20 ticks falls into the second bucket [16, 32)
	if s.Intervals[1] != 9 {
		t.Errorf("bucket distribution %v", s.Intervals)
	}
}

//
func TestProbeReset(t *testing.T) {

	var p FluxProbe

	p.InFlux = true
	p.Tick()
	p.Reset()

	s := p.Snapshot()
	if s.Transitions != 0 || s.Indexes != 0 {
		t.Errorf("counters survived the reset: %+v", s)
	}
	for _, b := range s.Intervals {
		if b != 0 {
			t.Fatalf("histogram survived the reset: %v", s.Intervals)
		}
	}
}
