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

// drive error codes reported through CmdReportErrorCode
const (
	errNone           = 0x00
	errInvalidCommand = 0x01
	errNoCartridge    = 0x02
	errMotionFault    = 0x03
)

// Profile is the identification a modeled drive reports about itself.
type Profile struct {
	Vendor uint16
	Model  byte
	Rom    byte
	Config byte
}

/*
	Drive is a complete modeled tape mechanism: the pulse counter, the
	command decoder, the position state machine and the status encoder,
	wired together behind the two physical lines a controller sees. It
	answers identification reports from its Profile, which lets the
	auto-detect sequence run end to end against it in loopback setups.

	The drive ignores everything until a phantom select, as a phantom
	drive on a shared cable must.
*/
type Drive struct {
	Timing  Timing
	Profile Profile

	Counter  *PulseCounter
	Position *Position
	Encoder  *StatusEncoder

	InEnable   bool
	InLine     bool // command pulses, the controller's step line
	InFileMark bool

	OutLine    bool // status line, the controller's track-zero line
	OutSegment bool // segment boundary marker, the controller's index line

	// ticks between synthetic segment boundary pulses while the tape
	// moves; tests shrink this together with the Timing values
	SegmentTicks int

	selected bool
	lastCmd  Command
	lastErr  byte
	segTimer int
}

//
func NewDrive(timing Timing, profile Profile, segmentTicks int) *Drive {
	return &Drive{
		Timing:       timing,
		Profile:      profile,
		Counter:      NewPulseCounter(timing),
		Position:     NewPosition(timing),
		Encoder:      NewStatusEncoder(timing),
		SegmentTicks: segmentTicks,
	}
}

//
func (d *Drive) Tick() {

	d.Counter.InEnable = d.InEnable
	d.Counter.InLine = d.InLine
	d.Counter.Tick()

	if d.Counter.OutValid {
		if cmd, ok := Decode(d.Counter.OutCommand); ok {
			d.apply(cmd)
		} else {
			d.lastErr = errInvalidCommand
		}
	}

	d.Position.InFileMark = d.InFileMark
	d.Position.InSegmentPulse = false
	if d.Position.moving() && d.SegmentTicks > 0 {
		if d.segTimer++; d.segTimer >= d.SegmentTicks {
			d.segTimer = 0
			d.Position.InSegmentPulse = true
		}
	} else {
		d.segTimer = 0
	}
	d.OutSegment = d.Position.InSegmentPulse
	d.Position.Tick()

	d.Encoder.Tick()
	d.OutLine = d.Encoder.OutLine
}

//
func (d *Drive) apply(cmd Command) {

	if !d.selected {
		if cmd == CmdPhantomSelect {
			d.selected = true
			log.WithField("command", cmd.String()).Debug("drive selected")
		}
		return
	}

	d.lastCmd = cmd

	switch {

	case cmd == CmdPhantomDeselect:
		d.selected = false

	case cmd == CmdReportNextBit:
		// first invocation snapshots the status word, later ones step
		// through its remaining bits
		if !d.Encoder.step ||
			(d.Encoder.bits == 0 && len(d.Encoder.data) == 0) {
			d.Encoder.LoadStepped(d.Position.Status().Encode())
		}
		d.Encoder.NextBit()

	case cmd.IsStatus():
		d.report(cmd)

	default:
		if cmd.IsMotion() && !d.Position.Cartridge {
			d.lastErr = errNoCartridge
			return
		}
		d.Position.Apply(cmd)
	}
}

//
func (d *Drive) report(cmd Command) {

	switch cmd {

	case CmdReportStatus, CmdReportTapeStatus:
		d.Encoder.Load(d.Position.Status().Encode())

	case CmdReportErrorCode:
		d.Encoder.Load(d.lastErr, byte(d.lastCmd))
		d.lastErr = errNone

	case CmdReportDriveConfig:
		d.Encoder.Load(d.Profile.Config)

	case CmdReportRomVersion:
		d.Encoder.Load(d.Profile.Rom)

	case CmdReportVendorID:
		d.Encoder.Load(
			byte(d.Profile.Vendor>>8), byte(d.Profile.Vendor))

	case CmdReportModelID:
		d.Encoder.Load(d.Profile.Model)

	case CmdReportFormatSegments:
		n := d.Position.MaxSegments
		d.Encoder.Load(byte(n>>8), byte(n))
	}
}
