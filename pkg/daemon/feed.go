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

package daemon

// ticks per flux feed interval unit; one byte then spans up to 85 µs,
// which covers a four cell gap at the slowest data rate
const fluxFeedUnit = 8

/*
	fluxFeed replays host supplied transition intervals onto the read
	chain, so an attached adapter can push captured flux through bit
	recovery without the write loopback. Intervals are queued in units
	of fluxFeedUnit ticks; a transition fires when its interval runs
	out.
*/
type fluxFeed struct {
	Out bool

	queue []int
	wait  int
}

//
func (f *fluxFeed) Tick() {

	f.Out = false

	if f.wait > 0 {
		if f.wait--; f.wait == 0 {
			f.Out = true
			f.next()
		}
	}
}

//
func (f *fluxFeed) next() {
	if len(f.queue) > 0 {
		f.wait = f.queue[0]
		f.queue = f.queue[1:]
	}
}

//
func (f *fluxFeed) push(intervals []byte) {
	for _, iv := range intervals {
		if iv > 0 {
			f.queue = append(f.queue, int(iv)*fluxFeedUnit)
		}
	}
	if f.wait == 0 {
		f.next()
	}
}
