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

package qic

import (
	"github.com/retroflux/driveback/pkg/sim"
)

/*
	Timing collects every pulse width, tolerance band and timeout of the
	QIC-117 side, in ticks. The values are nominal design figures, not
	guaranteed hardware truths, which is why they live in a struct rather
	than in constants: callers may tighten or loosen them.
*/
type Timing struct {
	// command pulse counting
	Debounce     int // ignore edges closer together than this
	LatchTimeout int // quiet period that latches the pulse count

	// status bit serialization: low pulse widths and inter-bit gap
	BitZeroLow int
	BitOneLow  int
	BitGap     int

	// response capture tolerance windows
	ShortMin int
	ShortMax int
	LongMin  int
	LongMax  int
	// quiet period that ends a capture early
	ResponseTimeout int

	// command pulse transmission
	PulseHigh int
	PulseGap  int

	// tape motion
	Spinup      int // motor spin-up before any motion
	Stop        int // deceleration before idle
	TrackChange int // head re-position during serpentine reversal

	// auto-detect per-phase budget
	PhaseTimeout int
}

// DefaultTiming returns the nominal QIC-117 timing set.
func DefaultTiming() Timing {
	return Timing{
		Debounce:        sim.Microseconds(50),
		LatchTimeout:    sim.Milliseconds(100),
		BitZeroLow:      sim.Microseconds(500),
		BitOneLow:       sim.Microseconds(1500),
		BitGap:          sim.Microseconds(1000),
		ShortMin:        sim.Microseconds(350),
		ShortMax:        sim.Microseconds(750),
		LongMin:         sim.Microseconds(1050),
		LongMax:         sim.Microseconds(2000),
		ResponseTimeout: sim.Milliseconds(6),
		PulseHigh:       sim.Microseconds(200),
		PulseGap:        sim.Microseconds(300),
		Spinup:          sim.Milliseconds(100),
		Stop:            sim.Milliseconds(20),
		TrackChange:     sim.Milliseconds(40),
		PhaseTimeout:    sim.Milliseconds(500),
	}
}
