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

// interval histogram: first bucket covers everything below the floor,
// each further bucket doubles the bound
const (
	probeBuckets     = 8
	probeBucketFloor = 16
)

/*
	FluxProbe is a passive counter on the flux and index lines: how many
	transitions and index pulses went by, and a coarse histogram of the
	intervals between transitions. It influences nothing downstream and
	exists purely as an informational side-channel.
*/
type FluxProbe struct {
	InFlux  bool
	InIndex bool

	transitions uint64
	indexes     uint64
	sinceLast   int
	buckets     [probeBuckets]uint64
}

// ProbeSnapshot is a point-in-time copy of the probe counters.
type ProbeSnapshot struct {
	Transitions uint64
	Indexes     uint64
	Intervals   []uint64
}

//
func (p *FluxProbe) Tick() {

	if p.InIndex {
		p.indexes++
	}

	p.sinceLast++

	if !p.InFlux {
		return
	}

	p.transitions++

	ix := 0
	for limit := probeBucketFloor; ix < probeBuckets-1 &&
		p.sinceLast >= limit; limit <<= 1 {
		ix++
	}
	p.buckets[ix]++

	p.sinceLast = 0
}

//
func (p *FluxProbe) Snapshot() ProbeSnapshot {
	s := ProbeSnapshot{
		Transitions: p.transitions,
		Indexes:     p.indexes,
		Intervals:   make([]uint64, probeBuckets),
	}
	copy(s.Intervals, p.buckets[:])
	return s
}

//
func (p *FluxProbe) Reset() {
	p.transitions = 0
	p.indexes = 0
	p.sinceLast = 0
	p.buckets = [probeBuckets]uint64{}
}
