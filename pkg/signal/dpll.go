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

// lock quality bounds and loop behavior
const (
	qualityMax     = 255
	qualityStep    = 8
	qualityPenalty = 32
	lockThreshold  = 192
	relockFloor    = 64

	// loop gain: the period estimate moves 1/8 of the observed error
	// per transition
	gainShift = 3

	// period fixed point fraction bits
	periodShift = 4

	// bound on decoded channel bits awaiting cell-paced emission
	pendingLimit = 64
)

/*
	BitRecovery is the digital PLL / data separator. It watches the flux
	transition input once per tick, classifies the interval since the last
	transition as 2, 3 or 4 channel bit cells, and queues the run-length
	decoded channel bits (N-1 zeros, then a one). Queued bits are emitted
	one per bit cell, paced by the adaptive cell period, with OutValid
	strobed on each.

	The period estimate tracks observed transition timing; the quality
	score rises on consistent agreement and falls on intervals outside the
	run-length limits. Loss of lock is reported through OutLocked and
	Quality only, recovery is left to downstream consumers.
*/
type BitRecovery struct {
	InFlux   bool // transition edge seen this tick
	InRelock bool // force re-lock, e.g. on a rate zone change

	OutBit    bool
	OutValid  bool // one-tick strobe per emitted channel bit
	OutClock  bool // derived bit-rate clock, strobed once per cell
	OutLocked bool

	rate      DataRate
	nominal   int // nominal cell ticks for rate
	period    int // adaptive cell period, ticks << periodShift
	sinceEdge int
	cellDown  int
	quality   int
	pending   []bool
}

//
func NewBitRecovery(rate DataRate) *BitRecovery {
	b := &BitRecovery{}
	b.SetRate(rate)
	return b
}

// SetRate configures the nominal data rate and forces a re-lock.
func (b *BitRecovery) SetRate(rate DataRate) {
	b.rate = rate
	b.nominal = rate.CellTicks()
	b.relock()
}

//
func (b *BitRecovery) Rate() DataRate {
	return b.rate
}

// Quality returns the lock quality score, 0 through 255.
func (b *BitRecovery) Quality() int {
	return b.quality
}

//
func (b *BitRecovery) relock() {
	b.period = b.nominal << periodShift
	b.cellDown = b.nominal
	b.sinceEdge = 0
	b.quality = 0
	b.OutLocked = false
	b.pending = b.pending[:0]
}

//
func (b *BitRecovery) Tick() {

	b.OutBit = false
	b.OutValid = false
	b.OutClock = false

	if b.InRelock {
		b.relock()
		return
	}

	b.sinceEdge++

	if b.InFlux {
		b.classify(b.sinceEdge)
		b.sinceEdge = 0
	}

	b.cellDown--
	if b.cellDown <= 0 {
		b.cellDown += b.period >> periodShift
		b.OutClock = true
		if len(b.pending) > 0 {
			b.OutBit = b.pending[0]
			b.pending = b.pending[1:]
			b.OutValid = true
		}
	}

	if b.quality >= lockThreshold {
		b.OutLocked = true
	} else if b.quality < relockFloor {
		b.OutLocked = false
	}
}

/*
	classify sorts a transition interval into 2, 3 or 4 cells, with the
	split points halfway between, i.e. at 1.5, 2.5, 3.5 and 4.5 cells.
	Comparisons are scaled by two to avoid the division.
*/
func (b *BitRecovery) classify(delta int) {

	period := b.period >> periodShift
	cells := 0

	switch {

	case delta*2 < period*3: // glitch, below the shortest legal run
		b.penalize()
		return

	case delta*2 < period*5:
		cells = 2

	case delta*2 < period*7:
		cells = 3

	case delta*2 < period*9:
		cells = 4

	default: // dropout, beyond the longest legal run
		b.penalize()
		return
	}

	// track the observed cell timing
	observed := (delta << periodShift) / cells
	b.period += (observed - b.period) >> gainShift

	if b.quality += qualityStep; b.quality > qualityMax {
		b.quality = qualityMax
	}

	if len(b.pending)+cells <= pendingLimit {
		for i := 1; i < cells; i++ {
			b.pending = append(b.pending, false)
		}
		b.pending = append(b.pending, true)
	}
}

//
func (b *BitRecovery) penalize() {
	if b.quality -= qualityPenalty; b.quality < 0 {
		b.quality = 0
	}
}
