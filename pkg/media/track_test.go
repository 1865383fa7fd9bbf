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

	"github.com/retroflux/driveback/pkg/signal"
)

//
func testTrack() Track {
	return Track{
		Gap: 4,
		Sectors: []Sector{
			{Cylinder: 2, Head: 0, Number: 1, SizeCode: 2,
				Data: []byte{0xde, 0xad}},
			{Cylinder: 2, Head: 0, Number: 2, SizeCode: 2,
				Data: []byte{0xbe, 0xef}},
		},
	}
}

// every field on a generated track must validate against the on-disk
// check convention: CRC over three sync marks, the mark byte and the
// field body, zero remainder after the check bytes
func TestTrackFieldsValidate(t *testing.T) {

	p := NewTrackPlayer(testTrack(), 1)
	p.InEnable = true

	var crc signal.CRC16
	collecting := false
	fields := 0

	for i := 0; i < 10000; i++ {
		p.Tick()
		if p.OutIndex {
			break
		}
		if p.OutSync {
			crc.Reset()
			crc.Feed(0xa1)
			crc.Feed(0xa1)
			crc.Feed(0xa1)
			collecting = true
			continue
		}
		if collecting && p.OutReady {
			crc.Feed(p.OutByte)
			continue
		}
		if collecting {
			// gap reached, field complete
			if !crc.Good() {
				t.Errorf("field %d fails its check bytes", fields)
			}
			fields++
			collecting = false
		}
	}

	// two sectors, an ID and a data field each
	if fields != 4 {
		t.Fatalf("validated %d fields, want 4", fields)
	}
}

//
func TestTrackCorruptCRC(t *testing.T) {

	track := testTrack()
	track.Sectors[0].BadIDCRC = true
	track.Sectors[1].BadDataCRC = true

	p := NewTrackPlayer(track, 1)
	p.InEnable = true

	var crc signal.CRC16
	collecting := false
	var good []bool

	for i := 0; i < 10000; i++ {
		p.Tick()
		if p.OutIndex {
			break
		}
		if p.OutSync {
			crc.Reset()
			crc.Feed(0xa1)
			crc.Feed(0xa1)
			crc.Feed(0xa1)
			collecting = true
			continue
		}
		if collecting && p.OutReady {
			crc.Feed(p.OutByte)
			continue
		}
		if collecting {
			good = append(good, crc.Good())
			collecting = false
		}
	}

	want := []bool{false, true, true, false}
	if len(good) != len(want) {
		t.Fatalf("saw %d fields, want %d", len(good), len(want))
	}
	for i := range want {
		if good[i] != want[i] {
			t.Errorf("field %d check %v, want %v", i, good[i], want[i])
		}
	}
}

// the player wraps like a spinning disk, pulsing the index on each
// revolution
func TestTrackPlayerWraps(t *testing.T) {

	p := NewTrackPlayer(testTrack(), 2)
	p.InEnable = true

	indexes := 0
	for i := 0; i < 30000; i++ {
		p.Tick()
		if p.OutIndex {
			indexes++
		}
	}

	if indexes < 2 {
		t.Fatalf("%d index pulses over several revolutions", indexes)
	}
}

//
func TestTrackPlayerDisabled(t *testing.T) {

	p := NewTrackPlayer(testTrack(), 1)

	for i := 0; i < 100; i++ {
		p.Tick()
		if p.OutLocked || p.OutReady || p.OutSync {
			t.Fatalf("disabled player produced output")
		}
	}
}
