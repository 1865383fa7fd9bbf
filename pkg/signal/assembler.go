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

// The two synchronization words hunted in the channel bit stream. Both
// are deliberately rule-breaking MFM patterns: 0xa1 respectively 0xc2
// with a missing clock bit.
const (
	SyncWord  = 0x4489
	IndexWord = 0x5224
)

/*
	Assembler hunts for synchronization patterns in the recovered channel
	bit stream and, once synchronized, assembles the data bits into bytes.
	A sliding 16 bit window over the most recent channel bits is compared
	against the standard sync mark and the control/index mark; a match
	strobes the respective output, realigns the clock/data phase and
	resets the byte counter. While unsynchronized, nothing but the sync
	strobes is produced.
*/
type Assembler struct {
	InEnable bool
	InBit    bool
	InValid  bool

	OutSync      bool // strobe: standard sync mark matched
	OutIndexMark bool // strobe: control/index mark matched
	OutByte      byte
	OutReady     bool // strobe: OutByte is complete
	OutSynced    bool
	OutCount     int // bytes assembled since the last sync

	shift uint16
	phase int
	bits  int
	acc   byte
}

//
func (a *Assembler) Tick() {

	a.OutSync = false
	a.OutIndexMark = false
	a.OutReady = false

	if !a.InEnable {
		a.drop()
		return
	}

	if !a.InValid {
		return
	}

	bit := uint16(0)
	if a.InBit {
		bit = 1
	}
	a.shift = a.shift<<1 | bit

	switch a.shift {

	case SyncWord:
		a.OutSync = true
		a.align()

	case IndexWord:
		a.OutIndexMark = true
		a.align()

	default:
		if !a.OutSynced {
			return
		}
		// channel bits alternate clock, data; only data bits count
		if a.phase ^= 1; a.phase == 0 {
			a.acc = a.acc << 1
			if a.InBit {
				a.acc |= 1
			}
			if a.bits++; a.bits == 8 {
				a.OutByte = a.acc
				a.OutReady = true
				a.bits = 0
				a.acc = 0
				a.OutCount++
			}
		}
	}
}

//
func (a *Assembler) align() {
	a.OutSynced = true
	a.phase = 0 // a clock bit follows the sync word, data bits on even phase
	a.bits = 0
	a.acc = 0
	a.OutCount = 0
}

//
func (a *Assembler) drop() {
	a.OutSynced = false
	a.shift = 0
	a.phase = 0
	a.bits = 0
	a.acc = 0
	a.OutCount = 0
}
