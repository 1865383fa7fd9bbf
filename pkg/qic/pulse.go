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

// pulse counts cap here before latching
const maxPulseCount = 63

/*
	PulseCounter debounces and edge-detects head-movement pulses while
	tape mode is enabled. Every accepted pulse increments the count and
	restarts the latch timeout; when the timeout expires with at least
	one pulse counted, the count is latched as the command value and
	OutValid strobes for a single tick.
*/
type PulseCounter struct {
	Timing Timing

	InEnable bool
	InLine   bool

	OutCount   int // pulses counted so far in the current sequence
	OutCommand int
	OutValid   bool

	last      bool
	sinceEdge int
	quiet     int
}

//
func NewPulseCounter(timing Timing) *PulseCounter {
	// a quiet line counts as settled, so the first edge is never bounce
	return &PulseCounter{Timing: timing, sinceEdge: timing.Debounce}
}

//
func (p *PulseCounter) Tick() {

	p.OutValid = false

	if !p.InEnable {
		p.OutCount = 0
		p.last = false
		p.sinceEdge = p.Timing.Debounce
		p.quiet = 0
		return
	}

	edge := p.InLine != p.last

	if edge && p.InLine {
		// rising edge; any edge inside the debounce window is bounce
		if p.sinceEdge >= p.Timing.Debounce {
			if p.OutCount < maxPulseCount {
				p.OutCount++
			}
			p.quiet = 0
		}
	}

	if edge {
		p.sinceEdge = 0
	} else {
		p.sinceEdge++
	}
	p.last = p.InLine

	if p.OutCount > 0 {
		if p.quiet++; p.quiet >= p.Timing.LatchTimeout {
			p.OutCommand = p.OutCount
			p.OutValid = true
			p.OutCount = 0
			p.quiet = 0
		}
	}
}
