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

package media

import (
	"github.com/retroflux/driveback/pkg/qic"
)

// TapeBlock is one block to place on a synthetic tape stream.
type TapeBlock struct {
	Header byte
	Data   []byte // padded with zeros up to the block size
}

// DataBlock builds a plain data block.
func DataBlock(data []byte) TapeBlock {
	return TapeBlock{Header: qic.HeaderData, Data: data}
}

// FileMark builds a file mark block.
func FileMark() TapeBlock {
	return TapeBlock{Header: qic.HeaderFileMark}
}

// Segment builds a full segment of data blocks, all carrying the given
// fill byte.
func Segment(fill byte) []TapeBlock {
	blocks := make([]TapeBlock, qic.BlocksPerSegment)
	for i := range blocks {
		data := make([]byte, qic.BlockSize)
		for j := range data {
			data[j] = fill
		}
		blocks[i] = TapeBlock{Header: qic.HeaderData, Data: data}
	}
	return blocks
}

/*
	TapePlayer replays tape blocks as the recovered byte stream the
	block streamer consumes: a sync strobe, the header byte, the padded
	payload and a synthetic ECC trailer per block, one event per
	ByteTicks ticks. The stream does not wrap; a tape has an end.
*/
type TapePlayer struct {
	ByteTicks int

	InEnable bool

	OutSync   bool
	OutByte   byte
	OutReady  bool
	OutLocked bool
	OutEnd    bool

	events []trackEvent
	pos    int
	phase  int
}

//
func NewTapePlayer(blocks []TapeBlock, byteTicks int) *TapePlayer {

	if byteTicks < 1 {
		byteTicks = 1
	}
	p := &TapePlayer{ByteTicks: byteTicks}

	for _, blk := range blocks {
		data := make([]byte, qic.BlockSize)
		copy(data, blk.Data)

		p.events = append(p.events, trackEvent{sync: true})
		p.events = append(p.events, trackEvent{ready: true, b: blk.Header})
		for _, b := range data {
			p.events = append(p.events, trackEvent{ready: true, b: b})
		}
		// the ECC bytes carry a simple running checksum, enough for the
		// streamer which does not verify them
		var sum byte
		for _, b := range data {
			sum += b
		}
		p.events = append(p.events,
			trackEvent{ready: true, b: sum},
			trackEvent{ready: true, b: ^sum},
			trackEvent{ready: true, b: blk.Header})
		p.events = append(p.events, trackEvent{}, trackEvent{})
	}
	return p
}

//
func (p *TapePlayer) Tick() {

	p.OutSync = false
	p.OutReady = false

	if !p.InEnable || p.pos >= len(p.events) {
		p.OutLocked = false
		p.OutEnd = p.pos >= len(p.events)
		return
	}
	p.OutLocked = true

	if p.phase++; p.phase < p.ByteTicks {
		return
	}
	p.phase = 0

	e := p.events[p.pos]
	p.OutSync = e.sync
	p.OutReady = e.ready
	p.OutByte = e.b
	p.pos++
}
