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

import (
	log "github.com/sirupsen/logrus"
)

// DefaultMaxSegments is the segment count of a full-length cartridge;
// segments number 0 through DefaultMaxSegments-1.
const DefaultMaxSegments = 4096

//
const DefaultMaxTracks = 28

// State is a tape motion state.
type State int

const (
	Idle State = iota
	MotorSpinup
	SeekBOT
	SeekEOT
	SkipForward
	SkipReverse
	StreamingForward
	StreamingReverse
	TrackChange
	Stopping
	Retensioning
	Ejecting
	Error
)

//
var stateNames = map[State]string{
	Idle:             "idle",
	MotorSpinup:      "motor spinup",
	SeekBOT:          "seek BOT",
	SeekEOT:          "seek EOT",
	SkipForward:      "skip forward",
	SkipReverse:      "skip reverse",
	StreamingForward: "streaming forward",
	StreamingReverse: "streaming reverse",
	TrackChange:      "track change",
	Stopping:         "stopping",
	Retensioning:     "retensioning",
	Ejecting:         "ejecting",
	Error:            "error",
}

//
func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "<unknown>"
}

// StatusWord is the unpacked 8 flag tape status; the packed wire form
// exists only at the Encode boundary.
type StatusWord struct {
	Ready          bool
	Error          bool
	Cartridge      bool
	WriteProtected bool
	NewCartridge   bool
	Referenced     bool
	AtBOT          bool
	AtEOT          bool
}

//
func (s StatusWord) Encode() byte {

	var b byte
	if s.Ready {
		b |= 0x01
	}
	if s.Error {
		b |= 0x02
	}
	if s.Cartridge {
		b |= 0x04
	}
	if s.WriteProtected {
		b |= 0x08
	}
	if s.NewCartridge {
		b |= 0x10
	}
	if s.Referenced {
		b |= 0x20
	}
	if s.AtBOT {
		b |= 0x40
	}
	if s.AtEOT {
		b |= 0x80
	}
	return b
}

//
func DecodeStatusWord(b byte) StatusWord {
	return StatusWord{
		Ready:          b&0x01 != 0,
		Error:          b&0x02 != 0,
		Cartridge:      b&0x04 != 0,
		WriteProtected: b&0x08 != 0,
		NewCartridge:   b&0x10 != 0,
		Referenced:     b&0x20 != 0,
		AtBOT:          b&0x40 != 0,
		AtEOT:          b&0x80 != 0,
	}
}

/*
	Position is the authoritative model of tape motion. Decoded commands
	enter through Apply, segment boundary pulses and file mark strobes
	through the per-tick inputs. Every motion-entering transition first
	spends the spin-up delay in MotorSpinup.

	Segment is monotonic within one operation; a track change happens
	only when the tape runs out under a streaming operation, flips the
	direction and advances the track by one, following the serpentine
	layout. The error state is left through a soft reset only.
*/
type Position struct {
	Timing      Timing
	MaxSegments int
	MaxTracks   int

	InSegmentPulse bool
	InFileMark     bool

	OutSegment    int
	OutTrack      int
	OutForward    bool
	OutAtBOT      bool
	OutAtEOT      bool
	OutAtFileMark bool
	OutBusy       bool

	Cartridge      bool
	WriteProtected bool
	Referenced     bool

	state        State
	next         State
	wait         int
	skipLeft     int
	fileMarkSkip bool
	retensionOut bool
	newCartridge bool
}

//
func NewPosition(timing Timing) *Position {
	return &Position{
		Timing:      timing,
		MaxSegments: DefaultMaxSegments,
		MaxTracks:   DefaultMaxTracks,
		Cartridge:   true,
		OutAtBOT:    true,
		OutForward:  true,
	}
}

//
func (p *Position) State() State {
	return p.state
}

// Status snapshots the drive status word at this instant; later motion
// does not change the snapshot.
func (p *Position) Status() StatusWord {
	return StatusWord{
		Ready:          p.state == Idle && p.Cartridge,
		Error:          p.state == Error,
		Cartridge:      p.Cartridge,
		WriteProtected: p.WriteProtected,
		NewCartridge:   p.newCartridge,
		Referenced:     p.Referenced,
		AtBOT:          p.OutAtBOT,
		AtEOT:          p.OutAtEOT,
	}
}

/*
	Apply feeds one decoded command into the state machine. Reserved and
	out-of-range codes must be filtered by the caller (Decode); commands
	that make no sense in the current state are ignored. Pause and stop
	are accepted from any motion state.
*/
func (p *Position) Apply(cmd Command) {

	if p.state == Error && cmd != CmdSoftReset {
		return
	}

	log.WithFields(log.Fields{
		"command": cmd.String(), "state": p.state.String(),
		"segment": p.OutSegment, "track": p.OutTrack,
	}).Debug("tape command")

	switch cmd {

	case CmdSoftReset:
		p.state = Idle
		p.OutBusy = false
		p.skipLeft = 0
		p.OutAtFileMark = false

	case CmdPause, CmdStopTape, CmdMicroStepPause:
		if p.moving() {
			p.enterStop()
		}

	case CmdSeekLoadPoint:
		p.spinup(SeekBOT, false)

	case CmdSeekEndOfTape:
		p.spinup(SeekEOT, true)

	case CmdSkipSegmentsForward, CmdSkipExtendedForward:
		p.skipLeft = 1
		p.fileMarkSkip = false
		p.spinup(SkipForward, true)

	case CmdSkipSegmentsReverse, CmdSkipExtendedReverse:
		p.skipLeft = 1
		p.fileMarkSkip = false
		p.spinup(SkipReverse, false)

	case CmdSkipFileMarksForward:
		p.fileMarkSkip = true
		p.spinup(SkipForward, true)

	case CmdSkipFileMarksReverse:
		p.fileMarkSkip = true
		p.spinup(SkipReverse, false)

	case CmdLogicalForward, CmdPhysicalForward:
		p.spinup(StreamingForward, true)

	case CmdPhysicalReverse:
		p.spinup(StreamingReverse, false)

	case CmdRetension, CmdCalibrateTapeLength:
		p.retensionOut = true
		p.spinup(Retensioning, true)

	case CmdEject:
		p.state = Ejecting
		p.wait = p.Timing.Stop
		p.OutBusy = true

	case CmdNewCartridge:
		p.newCartridge = true
		p.Referenced = false

	case CmdEnterFormatMode, CmdWriteReferenceBurst:
		p.Referenced = true

	case CmdEnterPrimaryMode:
		p.newCartridge = false
	}
}

//
func (p *Position) moving() bool {
	switch p.state {
	case Idle, Error, Ejecting, Stopping:
		return false
	}
	return true
}

//
func (p *Position) spinup(next State, forward bool) {
	if p.state != Idle || !p.Cartridge {
		return
	}
	p.state = MotorSpinup
	p.next = next
	p.wait = p.Timing.Spinup
	p.OutForward = forward
	p.OutBusy = true
	p.OutAtFileMark = false
}

//
func (p *Position) enterStop() {
	p.state = Stopping
	p.wait = p.Timing.Stop
}

//
func (p *Position) Tick() {

	switch p.state {

	case MotorSpinup, Stopping, TrackChange, Ejecting:
		if p.wait--; p.wait > 0 {
			return
		}

		switch p.state {

		case MotorSpinup:
			p.state = p.next

		case TrackChange:
			p.OutTrack++
			p.OutForward = !p.OutForward
			if p.OutForward {
				p.state = StreamingForward
			} else {
				p.state = StreamingReverse
			}

		case Ejecting:
			p.Cartridge = false
			p.Referenced = false
			p.state = Idle
			p.OutBusy = false

		default: // Stopping
			p.state = Idle
			p.OutBusy = false
		}

	case SeekBOT, SeekEOT, SkipForward, SkipReverse,
		StreamingForward, StreamingReverse, Retensioning:
		p.tickMotion()
	}
}

//
func (p *Position) tickMotion() {

	if p.InFileMark && p.fileMarkSkip &&
		(p.state == SkipForward || p.state == SkipReverse) {
		p.OutAtFileMark = true
		p.fileMarkSkip = false
		p.enterStop()
		return
	}

	if !p.InSegmentPulse {
		return
	}

	if p.OutForward {
		if p.OutSegment < p.MaxSegments-1 {
			p.OutSegment++
		}
	} else {
		if p.OutSegment > 0 {
			p.OutSegment--
		}
	}

	p.OutAtBOT = p.OutSegment == 0
	p.OutAtEOT = p.OutSegment == p.MaxSegments-1

	atEnd := (p.OutForward && p.OutAtEOT) || (!p.OutForward && p.OutAtBOT)

	switch p.state {

	case SeekBOT:
		if p.OutAtBOT {
			p.enterStop()
		}

	case SeekEOT:
		if p.OutAtEOT {
			p.enterStop()
		}

	case SkipForward, SkipReverse:
		if p.fileMarkSkip {
			if atEnd {
				// ran off the tape without finding a file mark
				p.state = Error
				p.OutBusy = false
			}
			return
		}
		if p.skipLeft--; p.skipLeft <= 0 {
			p.enterStop()
		} else if atEnd {
			p.state = Error
			p.OutBusy = false
		}

	case StreamingForward, StreamingReverse:
		if !atEnd {
			return
		}
		// serpentine reversal instead of a stop, unless this was the
		// last track
		if p.OutTrack >= p.MaxTracks-1 {
			p.enterStop()
			return
		}
		p.state = TrackChange
		p.wait = p.Timing.TrackChange

	case Retensioning:
		if p.retensionOut {
			if p.OutAtEOT {
				p.retensionOut = false
				p.OutForward = false
			}
		} else if p.OutAtBOT {
			p.enterStop()
		}
	}
}
