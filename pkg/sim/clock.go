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

package sim

// TickHz is the logical tick rate of the core, 24 MHz. All durations in
// the core are counted in ticks of this rate.
const TickHz = 24000000

//
const ticksPerMicrosecond = TickHz / 1000000

// Microseconds converts a duration in microseconds to ticks.
func Microseconds(us int) int {
	return us * ticksPerMicrosecond
}

// Milliseconds converts a duration in milliseconds to ticks.
func Milliseconds(ms int) int {
	return ms * 1000 * ticksPerMicrosecond
}

/*
	Component is anything that advances one tick at a time. A component
	reads only its own input fields during Tick. Inputs are filled by wire
	functions, which the clock runs before ticking, so that a component
	only ever sees output values its upstream neighbors produced on the
	previous tick.
*/
type Component interface {
	Tick()
}

//
type Clock struct {
	wires []func()
	comps []Component
	now   uint64
}

// Add registers components in tick order.
func (c *Clock) Add(comps ...Component) {
	c.comps = append(c.comps, comps...)
}

// Wire registers a signal copy function, run before every tick.
func (c *Clock) Wire(wires ...func()) {
	c.wires = append(c.wires, wires...)
}

// Step advances the whole core by one tick: propagate previous-tick
// outputs over the wires, then tick every component.
func (c *Clock) Step() {
	for _, w := range c.wires {
		w()
	}
	for _, comp := range c.comps {
		comp.Tick()
	}
	c.now++
}

// Run advances the core by n ticks.
func (c *Clock) Run(n int) {
	for i := 0; i < n; i++ {
		c.Step()
	}
}

//
func (c *Clock) Now() uint64 {
	return c.now
}
