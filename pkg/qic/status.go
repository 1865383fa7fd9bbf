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

/*
	StatusEncoder serializes report bytes onto the drive's track-zero
	line as pulse-width modulated bits, most significant bit first. A
	zero bit is a short low pulse, a one bit a long one, with a fixed
	high gap between bits. The line idles high.

	Multi-byte reports are loaded with Load and stepped with NextByte by
	the drive model once the previous byte has gone out.
*/
type StatusEncoder struct {
	Timing Timing

	OutLine bool
	OutBusy bool

	data []byte
	bits int
	cur  byte
	low  int
	gap  int
	step bool
}

//
func NewStatusEncoder(timing Timing) *StatusEncoder {
	return &StatusEncoder{Timing: timing, OutLine: true}
}

// Load queues the given report for transmission, replacing whatever was
// still pending.
func (s *StatusEncoder) Load(data ...byte) {
	s.data = append(s.data[:0], data...)
	s.bits = 0
	s.low = 0
	s.gap = 0
	s.step = false
	s.OutLine = true
	s.OutBusy = len(s.data) > 0
}

// LoadStepped queues a report that goes out one bit per NextBit call
// instead of free-running.
func (s *StatusEncoder) LoadStepped(data ...byte) {
	s.Load(data...)
	s.step = true
	s.OutBusy = false
}

// NextBit releases the next bit of a stepped report.
func (s *StatusEncoder) NextBit() {
	if !s.step {
		return
	}
	if s.bits > 0 || len(s.data) > 0 {
		s.OutBusy = true
	}
}

//
func (s *StatusEncoder) nextBit() {

	if s.bits == 0 {
		if len(s.data) == 0 {
			s.OutBusy = false
			return
		}
		s.cur = s.data[0]
		s.data = s.data[1:]
		s.bits = 8
	}

	if s.cur&0x80 != 0 {
		s.low = s.Timing.BitOneLow
	} else {
		s.low = s.Timing.BitZeroLow
	}
	s.cur <<= 1
	s.bits--
	s.gap = s.Timing.BitGap
}

//
func (s *StatusEncoder) Tick() {

	if !s.OutBusy {
		s.OutLine = true
		return
	}

	if s.low > 0 {
		s.OutLine = false
		s.low--
		return
	}

	s.OutLine = true
	if s.gap > 0 {
		s.gap--
		if s.step && s.gap == 0 {
			// stepped mode pauses after each bit
			s.OutBusy = false
		}
		return
	}
	s.nextBit()
}
