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

/*
	CommandPulser transmits a tape command as a train of pulses on the
	step line. Send arms a count; the pulser then alternates a fixed
	high time and gap until the train is out.
*/
type CommandPulser struct {
	Timing Timing

	OutLine bool
	OutBusy bool

	left int
	high int
	gap  int
}

//
func NewCommandPulser(timing Timing) *CommandPulser {
	return &CommandPulser{Timing: timing}
}

// Send arms a pulse train for the given command. A train still in
// flight is aborted.
func (c *CommandPulser) Send(cmd Command) {
	c.left = int(cmd)
	c.high = 0
	c.gap = 0
	c.OutBusy = c.left > 0
	c.OutLine = false
}

//
func (c *CommandPulser) Tick() {

	if !c.OutBusy {
		c.OutLine = false
		return
	}

	switch {

	case c.high > 0:
		c.OutLine = true
		if c.high--; c.high == 0 {
			c.gap = c.Timing.PulseGap
		}

	case c.gap > 0:
		c.OutLine = false
		c.gap--

	case c.left > 0:
		c.left--
		c.high = c.Timing.PulseHigh
		c.OutLine = true
		c.high--

	default:
		c.OutBusy = false
		c.OutLine = false
	}
}

// detection phases, in on-the-wire order
type detectPhase int

const (
	phIdle detectPhase = iota
	phSelect
	phPresence
	phVendor
	phModel
	phRom
	phConfig
	phDone
)

//
var phaseNames = map[detectPhase]string{
	phSelect:   "phantom select",
	phPresence: "presence",
	phVendor:   "vendor",
	phModel:    "model",
	phRom:      "rom",
	phConfig:   "config",
}

//
type phaseStep struct {
	cmd   Command
	bytes int  // response bytes to capture, 0 for none
	fatal bool // a timeout here aborts the whole sequence
}

//
var phaseSteps = map[detectPhase]phaseStep{
	phSelect:   {CmdPhantomSelect, 0, false},
	phPresence: {CmdReportStatus, 1, true},
	phVendor:   {CmdReportVendorID, 2, false},
	phModel:    {CmdReportModelID, 1, false},
	phRom:      {CmdReportRomVersion, 1, false},
	phConfig:   {CmdReportDriveConfig, 1, false},
}

/*
	AutoDetect runs the scripted drive identification sequence: phantom
	select, then a status report to confirm something is listening, then
	the vendor, model, rom and config reports. Each phase sends its
	command through the pulser and captures the reply through the
	response decoder under a bounded budget.

	A presence timeout is fatal and ends the sequence with no drive
	found; a timeout in any later phase merely leaves that field unknown
	and moves on. The decode step at the end maps whatever was captured
	to a drive type and capability set.
*/
type AutoDetect struct {
	Timing Timing

	Pulser  *CommandPulser
	Decoder *ResponseDecoder

	OutInProgress bool
	OutDone       bool
	OutErr        bool
	OutPresent    bool

	Identity DriveIdentity

	phase   detectPhase
	sent    bool
	settle  int
	elapsed int
}

//
func NewAutoDetect(timing Timing, pulser *CommandPulser,
	decoder *ResponseDecoder) *AutoDetect {

	return &AutoDetect{Timing: timing, Pulser: pulser, Decoder: decoder}
}

// Start begins a detection run, discarding any previous result.
func (a *AutoDetect) Start() {
	a.phase = phSelect
	a.sent = false
	a.elapsed = 0
	a.OutInProgress = true
	a.OutDone = false
	a.OutErr = false
	a.OutPresent = false
	a.Identity = DriveIdentity{}
	log.Debug("tape drive detection started")
}

//
func (a *AutoDetect) finish(err bool) {
	a.phase = phDone
	a.OutInProgress = false
	a.OutDone = true
	a.OutErr = err

	log.WithFields(log.Fields{
		"present": a.OutPresent,
		"error":   err,
		"type":    a.Identity.Type.String(),
		"vendor":  a.Identity.Name,
	}).Debug("tape drive detection finished")
}

//
func (a *AutoDetect) advance() {
	a.phase++
	a.sent = false
	a.elapsed = 0
	if a.phase == phDone {
		decodeIdentity(&a.Identity)
		a.finish(false)
	}
}

//
func (a *AutoDetect) Tick() {

	if !a.OutInProgress {
		return
	}

	step := phaseSteps[a.phase]

	if !a.sent {
		a.Pulser.Send(step.cmd)
		if step.bytes > 0 {
			a.Decoder.Start(step.bytes)
		} else {
			// no reply expected, allow the drive to latch the count
			a.settle = a.Timing.LatchTimeout + a.Timing.Debounce
		}
		a.sent = true
		return
	}

	if a.Pulser.OutBusy {
		return
	}

	if step.bytes == 0 {
		if a.settle--; a.settle <= 0 {
			a.advance()
		}
		return
	}

	if a.Decoder.OutDone && !a.Decoder.OutErr {
		a.record(a.Decoder.OutData)
		a.advance()
		return
	}

	failed := a.Decoder.OutDone && a.Decoder.OutErr
	if a.elapsed++; a.elapsed >= a.Timing.PhaseTimeout || failed {
		if step.fatal {
			a.finish(true)
			return
		}
		log.WithField("phase", phaseNames[a.phase]).
			Debug("detection phase timed out")
		a.advance()
	}
}

//
func (a *AutoDetect) record(data []byte) {

	switch a.phase {

	case phPresence:
		a.OutPresent = true
		a.Identity.Present = true

	case phVendor:
		if len(data) >= 2 {
			a.Identity.Vendor = uint16(data[0])<<8 | uint16(data[1])
			a.Identity.VendorKnown = true
		}

	case phModel:
		if len(data) >= 1 {
			a.Identity.Model = data[0]
			a.Identity.ModelKnown = true
		}

	case phRom:
		if len(data) >= 1 {
			a.Identity.Rom = data[0]
			a.Identity.RomKnown = true
		}

	case phConfig:
		if len(data) >= 1 {
			a.Identity.Config = data[0]
			a.Identity.ConfigKnown = true
		}
	}
}
