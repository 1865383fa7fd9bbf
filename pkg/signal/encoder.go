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

/*
	WriteEncoder serializes outgoing bytes into a flux-transition-coded
	channel stream, clocked at the configured data rate. Bytes are latched
	with InStrobe while OutNext is up; OutNext is the back-pressure line
	and drops until the latched byte has been taken over for serializing.
	A byte latched with InMark set is emitted as the raw sync mark channel
	word instead of being MFM encoded.

	MFM clock rule: a clock transition is inserted between two zero data
	bits only.
*/
type WriteEncoder struct {
	InEnable bool
	InByte   byte
	InMark   bool
	InStrobe bool

	OutFlux     bool // transition strobe
	OutByteDone bool // strobe: current byte fully serialized
	OutNext     bool // ready to latch the next byte

	cell     int
	cellDown int

	cur      byte
	curBits  int
	raw      uint16
	rawBits  int
	next     byte
	nextMark bool
	hasNext  bool
	lastData bool
	phase    int
}

//
func NewWriteEncoder(rate DataRate) *WriteEncoder {
	e := &WriteEncoder{}
	e.SetRate(rate)
	return e
}

//
func (e *WriteEncoder) SetRate(rate DataRate) {
	e.cell = rate.CellTicks()
	e.cellDown = e.cell
}

//
func (e *WriteEncoder) Tick() {

	e.OutFlux = false
	e.OutByteDone = false

	if !e.InEnable {
		e.OutNext = false
		e.curBits = 0
		e.rawBits = 0
		e.hasNext = false
		e.phase = 0
		e.lastData = false
		return
	}

	if e.InStrobe && !e.hasNext {
		e.next = e.InByte
		e.nextMark = e.InMark
		e.hasNext = true
	}

	if e.cellDown--; e.cellDown <= 0 {
		e.cellDown = e.cell
		e.emitCell()
	}

	e.OutNext = !e.hasNext
}

//
func (e *WriteEncoder) emitCell() {

	if e.rawBits > 0 {
		e.OutFlux = e.raw&0x8000 != 0
		e.raw <<= 1
		if e.rawBits--; e.rawBits == 0 {
			e.OutByteDone = true
		}
		return
	}

	if e.curBits == 0 && e.phase == 0 {
		if !e.hasNext {
			return // nothing to write, leave the cell empty
		}
		e.hasNext = false
		if e.nextMark {
			e.raw = SyncWord
			e.rawBits = 16
			e.lastData = true // the mark's data byte ends in a one
			e.OutFlux = e.raw&0x8000 != 0
			e.raw <<= 1
			e.rawBits--
			return
		}
		e.cur = e.next
		e.curBits = 8
	}

	if e.phase == 0 {
		// clock cell
		e.OutFlux = !e.lastData && e.cur&0x80 == 0
		e.phase = 1
		return
	}

	// data cell
	e.lastData = e.cur&0x80 != 0
	e.OutFlux = e.lastData
	e.cur <<= 1
	e.phase = 0
	if e.curBits--; e.curBits == 0 {
		e.OutByteDone = true
	}
}
