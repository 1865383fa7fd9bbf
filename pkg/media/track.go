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

// Package media builds synthetic floppy tracks and tape streams and
// replays them tick by tick, standing in for a spinning medium.
package media

import (
	"github.com/retroflux/driveback/pkg/signal"
)

// address marks as recorded on the medium
const (
	markID          = 0xfe
	markData        = 0xfb
	markDeletedData = 0xf8
)

// Sector describes one sector to place on a synthetic track.
type Sector struct {
	Cylinder int
	Head     int
	Number   int
	SizeCode int

	Deleted bool
	Data    []byte // padded with zeros up to the coded size

	// corrupt the matching check bytes on the medium
	BadIDCRC   bool
	BadDataCRC bool
}

//
func (s Sector) size() int {
	return 128 << uint(s.SizeCode&0x03)
}

// Track is an ordered set of sectors with inter-field gaps.
type Track struct {
	Sectors []Sector
	Gap     int // gap bytes between fields
}

// one slot of the replayed byte stream
type trackEvent struct {
	sync  bool
	ready bool
	b     byte
}

// fieldCRC computes the check word of an address field as recorded on
// the medium, covering the three sync marks and the mark byte.
func fieldCRC(mark byte, body []byte) uint16 {

	var crc signal.CRC16
	crc.Reset()
	crc.Feed(0xa1)
	crc.Feed(0xa1)
	crc.Feed(0xa1)
	crc.Feed(mark)
	crc.FeedAll(body)
	return crc.Value()
}

//
func (t Track) events() []trackEvent {

	var ev []trackEvent

	bytes := func(bs ...byte) {
		for _, b := range bs {
			ev = append(ev, trackEvent{ready: true, b: b})
		}
	}
	gap := func() {
		for i := 0; i < t.Gap; i++ {
			ev = append(ev, trackEvent{})
		}
	}

	gap()
	for _, s := range t.Sectors {

		id := []byte{
			byte(s.Cylinder), byte(s.Head), byte(s.Number), byte(s.SizeCode),
		}
		crc := fieldCRC(markID, id)
		if s.BadIDCRC {
			crc = ^crc
		}
		ev = append(ev, trackEvent{sync: true})
		bytes(markID)
		bytes(id...)
		bytes(byte(crc>>8), byte(crc))
		gap()

		mark := byte(markData)
		if s.Deleted {
			mark = markDeletedData
		}
		data := make([]byte, s.size())
		copy(data, s.Data)
		crc = fieldCRC(mark, data)
		if s.BadDataCRC {
			crc = ^crc
		}
		ev = append(ev, trackEvent{sync: true})
		bytes(mark)
		bytes(data...)
		bytes(byte(crc>>8), byte(crc))
		gap()
	}

	return ev
}

/*
	TrackPlayer replays a track as the byte stream a locked read chain
	would recover, one event per ByteTicks ticks, wrapping around like
	the spinning disk it stands in for. The index pulse fires on every
	wrap.
*/
type TrackPlayer struct {
	ByteTicks int

	InEnable bool

	OutSync   bool
	OutByte   byte
	OutReady  bool
	OutIndex  bool
	OutLocked bool

	events []trackEvent
	pos    int
	phase  int
}

//
func NewTrackPlayer(t Track, byteTicks int) *TrackPlayer {
	if byteTicks < 1 {
		byteTicks = 1
	}
	return &TrackPlayer{ByteTicks: byteTicks, events: t.events()}
}

//
func (p *TrackPlayer) Tick() {

	p.OutSync = false
	p.OutReady = false
	p.OutIndex = false

	if !p.InEnable || len(p.events) == 0 {
		p.OutLocked = false
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

	if p.pos++; p.pos == len(p.events) {
		p.pos = 0
		p.OutIndex = true
	}
}
