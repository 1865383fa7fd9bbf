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
	"testing"

	"github.com/retroflux/driveback/pkg/qic"
)

// a generated segment pushed through the block streamer must complete
// exactly one segment
func TestTapeSegmentThroughStreamer(t *testing.T) {

	p := NewTapePlayer(Segment(0x5a), 1)
	p.InEnable = true

	s := qic.NewBlockStreamer()
	s.InEnable = true

	segments := 0
	payload := 0

	for i := 0; i < 100000 && !p.OutEnd; i++ {
		s.InLocked = p.OutLocked
		s.InSync = p.OutSync
		s.InByte = p.OutByte
		s.InReady = p.OutReady
		p.Tick()
		s.Tick()
		if s.OutValid {
			payload++
			if s.OutByte != 0x5a {
				t.Fatalf("payload byte %#02x, want 5a", s.OutByte)
			}
		}
		if s.OutSegmentDone {
			segments++
		}
	}

	if segments != 1 {
		t.Fatalf("%d segment pulses, want 1", segments)
	}
	if payload != qic.BlocksPerSegment*qic.BlockSize {
		t.Fatalf("%d payload bytes", payload)
	}
	if s.OutSegmentCount != 1 || s.OutBlockInSegment != 0 {
		t.Fatalf("segment count %d, block %d",
			s.OutSegmentCount, s.OutBlockInSegment)
	}
}

//
func TestTapeFileMark(t *testing.T) {

	blocks := []TapeBlock{
		DataBlock([]byte{1, 2, 3}),
		FileMark(),
		DataBlock([]byte{4, 5, 6}),
	}
	p := NewTapePlayer(blocks, 1)
	p.InEnable = true

	s := qic.NewBlockStreamer()
	s.InEnable = true

	marks := 0
	blocksDone := 0

	for i := 0; i < 10000 && !p.OutEnd; i++ {
		s.InLocked = p.OutLocked
		s.InSync = p.OutSync
		s.InByte = p.OutByte
		s.InReady = p.OutReady
		p.Tick()
		s.Tick()
		if s.OutBlockDone {
			blocksDone++
		}
		if s.OutFileMark {
			marks++
		}
	}

	if blocksDone != 3 {
		t.Fatalf("%d blocks, want 3", blocksDone)
	}
	if marks != 1 {
		t.Fatalf("%d file marks, want 1", marks)
	}
}
