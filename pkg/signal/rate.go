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
	"github.com/retroflux/driveback/pkg/sim"
)

// DataRate is one of the nominal transfer rates of the controller.
type DataRate int

const (
	Rate250K DataRate = iota
	Rate300K
	Rate500K
	Rate1M
)

//
func (r DataRate) String() string {

	switch r {

	case Rate250K:
		return "250 kbit/s"

	case Rate300K:
		return "300 kbit/s"

	case Rate500K:
		return "500 kbit/s"

	case Rate1M:
		return "1 Mbit/s"

	default:
		return "<unknown>"
	}
}

// CellTicks is the nominal duration of one channel bit cell in ticks,
// i.e. half a data bit cell in MFM.
func (r DataRate) CellTicks() int {

	switch r {

	case Rate250K:
		return sim.TickHz / 500000

	case Rate300K:
		return sim.TickHz / 600000

	case Rate500K:
		return sim.TickHz / 1000000

	case Rate1M:
		return sim.TickHz / 2000000

	default:
		return sim.TickHz / 500000
	}
}

// Mask returns the rate's bit in a supported-rates bitmap.
func (r DataRate) Mask() byte {
	return 1 << uint(r)
}

// Zone maps a band of cylinders to the data rate recorded there, for
// media with variable-speed (zoned) recording.
type Zone struct {
	StartCylinder int
	Rate          DataRate
}

/*
	ZoneCalculator derives the expected data-rate zone from the current
	head position. It samples the cylinder input once per tick and strobes
	OutChanged for one tick whenever the derived rate differs from the
	previous one, which downstream forces a re-lock of the bit recovery.

	Zones must be ordered by ascending start cylinder. An empty zone table
	pins the rate to the configured default.
*/
type ZoneCalculator struct {
	Zones   []Zone
	Default DataRate

	InCylinder int

	OutRate    DataRate
	OutChanged bool

	started bool
}

//
func (z *ZoneCalculator) Tick() {

	rate := z.Default
	for _, zone := range z.Zones {
		if z.InCylinder >= zone.StartCylinder {
			rate = zone.Rate
		} else {
			break
		}
	}

	z.OutChanged = z.started && rate != z.OutRate
	z.OutRate = rate
	z.started = true
}
