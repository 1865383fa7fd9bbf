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
	ResponseDecoder captures a pulse-width modulated drive report on the
	controller side. A capture is armed with Start for an expected byte
	count; low pulses inside the short window decode to 0, inside the
	long window to 1, bits fill in most significant first.

	A pulse width outside both tolerance windows aborts the capture with
	an error. If the line goes quiet before all expected bytes arrived,
	the capture completes early with what it has, provided at least one
	full byte came in; a quiet partial byte is an error too.
*/
type ResponseDecoder struct {
	Timing Timing

	InLine bool

	OutData []byte
	OutDone bool
	OutErr  bool

	armed  bool
	active bool
	want   int
	last   bool
	low    int
	quiet  int
	acc    byte
	bits   int
}

//
func NewResponseDecoder(timing Timing) *ResponseDecoder {
	return &ResponseDecoder{Timing: timing, last: true}
}

// Start arms the decoder for a report of up to want bytes. Any capture
// in progress is discarded.
func (r *ResponseDecoder) Start(want int) {
	r.armed = true
	r.active = false
	r.want = want
	r.OutData = r.OutData[:0]
	r.OutDone = false
	r.OutErr = false
	r.low = 0
	r.quiet = 0
	r.acc = 0
	r.bits = 0
}

//
func (r *ResponseDecoder) finish(err bool) {
	r.armed = false
	r.OutDone = true
	r.OutErr = err
}

//
func (r *ResponseDecoder) Tick() {

	if !r.armed {
		r.last = r.InLine
		return
	}

	if !r.InLine {
		r.low++
		r.quiet = 0
		r.active = true
		r.last = r.InLine
		return
	}

	if !r.last {
		// rising edge, classify the completed low pulse
		var bit byte
		switch {
		case r.low >= r.Timing.ShortMin && r.low <= r.Timing.ShortMax:
			bit = 0
		case r.low >= r.Timing.LongMin && r.low <= r.Timing.LongMax:
			bit = 1
		default:
			r.finish(true)
			r.last = r.InLine
			return
		}
		r.low = 0

		r.acc = r.acc<<1 | bit
		if r.bits++; r.bits == 8 {
			r.OutData = append(r.OutData, r.acc)
			r.acc = 0
			r.bits = 0
			if len(r.OutData) == r.want {
				r.finish(false)
				r.last = r.InLine
				return
			}
		}
	}
	r.last = r.InLine

	// the quiet timeout only runs once the drive started talking; a
	// drive that never answers at all is the sequencer's timeout to
	// call
	if !r.active {
		return
	}
	if r.quiet++; r.quiet >= r.Timing.ResponseTimeout {
		// drive stopped talking; a partial byte means the capture is
		// broken, full bytes are a valid short report
		r.finish(r.bits != 0 || len(r.OutData) == 0)
	}
}
