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

// tape block geometry
const (
	BlockSize        = 512
	BlockECCSize     = 3
	BlocksPerSegment = 32
)

// BlockKind classifies a tape block by its header byte.
type BlockKind int

const (
	BlockData BlockKind = iota
	BlockFileMark
	BlockEndOfData
	BlockBad
)

// header byte values on tape
const (
	HeaderData     = 0x01
	HeaderFileMark = 0x02
	HeaderEOD      = 0x03
)

//
func classifyHeader(b byte) BlockKind {
	switch b {
	case HeaderData:
		return BlockData
	case HeaderFileMark:
		return BlockFileMark
	case HeaderEOD:
		return BlockEndOfData
	}
	return BlockBad
}

//
func (k BlockKind) String() string {
	switch k {
	case BlockData:
		return "data"
	case BlockFileMark:
		return "file mark"
	case BlockEndOfData:
		return "end of data"
	}
	return "bad"
}

// streamer phases
type streamPhase int

const (
	phaseHunt streamPhase = iota
	phaseHeader
	phasePayload
	phaseECC
)

/*
	BlockStreamer turns the recovered tape byte stream into blocks. It
	hunts for the sync strobe of the byte assembler, then takes one
	header byte, 512 payload bytes and 3 ECC bytes; finishing the ECC
	advances blockInSegment, and finishing block 31 pulses segment
	complete and bumps the monotonic segment count.

	Losing bit-recovery lock in the middle of a block abandons it with a
	sync-lost pulse and drops back to hunting.
*/
type BlockStreamer struct {
	InEnable bool
	InLocked bool
	InSync   bool
	InByte   byte
	InReady  bool

	OutByte        byte
	OutValid       bool
	OutKind        BlockKind
	OutBlockDone   bool
	OutFileMark    bool
	OutSegmentDone bool
	OutSyncLost    bool

	OutBlockInSegment int
	OutSegmentCount   int

	phase streamPhase
	count int
}

//
func NewBlockStreamer() *BlockStreamer {
	return &BlockStreamer{}
}

//
func (s *BlockStreamer) reset() {
	s.phase = phaseHunt
	s.count = 0
}

//
func (s *BlockStreamer) Tick() {

	s.OutValid = false
	s.OutBlockDone = false
	s.OutFileMark = false
	s.OutSegmentDone = false
	s.OutSyncLost = false

	if !s.InEnable {
		s.reset()
		return
	}

	if s.phase != phaseHunt && !s.InLocked {
		s.OutSyncLost = true
		s.reset()
		return
	}

	switch s.phase {

	case phaseHunt:
		if s.InSync {
			s.phase = phaseHeader
		}

	case phaseHeader:
		if !s.InReady {
			return
		}
		s.OutKind = classifyHeader(s.InByte)
		s.phase = phasePayload
		s.count = 0

	case phasePayload:
		if !s.InReady {
			return
		}
		s.OutByte = s.InByte
		s.OutValid = true
		if s.count++; s.count == BlockSize {
			s.phase = phaseECC
			s.count = 0
		}

	case phaseECC:
		if !s.InReady {
			return
		}
		if s.count++; s.count < BlockECCSize {
			return
		}
		s.finishBlock()
	}
}

//
func (s *BlockStreamer) finishBlock() {

	s.OutBlockDone = true
	s.OutFileMark = s.OutKind == BlockFileMark

	if s.OutBlockInSegment++; s.OutBlockInSegment == BlocksPerSegment {
		s.OutBlockInSegment = 0
		s.OutSegmentCount++
		s.OutSegmentDone = true
	}
	s.reset()
}
