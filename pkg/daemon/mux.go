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

package daemon

/*
	LineMux reinterprets the shared cable lines depending on the tape
	mode bit. The step line carries head step pulses in floppy mode and
	QIC command pulse trains in tape mode; the return line is the track
	zero sensor in floppy mode and the drive's serial status line in tape
	mode; the index line carries the index hole pulse in floppy mode and
	the segment boundary marker in tape mode. Exactly one interpretation
	is live at any time, the dormant outputs are held at their idle level.
*/
type LineMux struct {
	InTapeMode bool

	InStepFloppy bool // step pulses from the floppy side
	InStepTape   bool // command pulses from the QIC pulser
	InTrack0     bool // track zero sensor from the floppy mechanism
	InStatusLine bool // status line from the tape drive
	InIndex      bool // index pulse from the floppy mechanism
	InSegment    bool // segment boundary pulse from the tape drive

	OutStep   bool // onto the shared step line
	OutTrack0 bool // to the floppy controller
	OutStatus bool // to the response decoder; idles high
	OutIndex  bool // index respectively segment marker
}

//
func (m *LineMux) Tick() {

	if m.InTapeMode {
		m.OutStep = m.InStepTape
		m.OutTrack0 = false
		m.OutStatus = m.InStatusLine
		m.OutIndex = m.InSegment
	} else {
		m.OutStep = m.InStepFloppy
		m.OutTrack0 = m.InTrack0
		m.OutStatus = true
		m.OutIndex = m.InIndex
	}
}
