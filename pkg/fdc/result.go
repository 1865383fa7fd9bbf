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

package fdc

import (
	"fmt"
)

// InterruptCode classifies how a command terminated, reported in the
// top two bits of ST0.
type InterruptCode int

const (
	NormalTermination InterruptCode = iota
	AbnormalTermination
	InvalidCommand
	ReadyChanged
)

//
func (c InterruptCode) String() string {

	switch c {

	case NormalTermination:
		return "normal termination"

	case AbnormalTermination:
		return "abnormal termination"

	case InvalidCommand:
		return "invalid command"

	case ReadyChanged:
		return "ready changed"

	default:
		return "<unknown>"
	}
}

// ST0 is the primary status byte of a result set. The packed wire form
// exists only at the Encode boundary.
type ST0 struct {
	Code           InterruptCode
	SeekEnd        bool
	EquipmentCheck bool
	NotReady       bool
	Head           int
	Drive          int
}

//
func (s ST0) Encode() byte {

	b := byte(s.Code) << 6
	if s.SeekEnd {
		b |= 0x20
	}
	if s.EquipmentCheck {
		b |= 0x10
	}
	if s.NotReady {
		b |= 0x08
	}
	if s.Head != 0 {
		b |= 0x04
	}
	return b | byte(s.Drive&0x03)
}

// ST1 carries field level error classification.
type ST1 struct {
	EndOfCylinder      bool
	DataError          bool
	Overrun            bool
	NoData             bool
	NotWritable        bool
	MissingAddressMark bool
}

//
func (s ST1) Encode() byte {

	var b byte
	if s.EndOfCylinder {
		b |= 0x80
	}
	if s.DataError {
		b |= 0x20
	}
	if s.Overrun {
		b |= 0x10
	}
	if s.NoData {
		b |= 0x04
	}
	if s.NotWritable {
		b |= 0x02
	}
	if s.MissingAddressMark {
		b |= 0x01
	}
	return b
}

// ST2 refines data field and cylinder mismatch conditions.
type ST2 struct {
	ControlMark      bool
	DataErrorInField bool
	WrongCylinder    bool
	BadCylinder      bool
	MissingDataMark  bool
}

//
func (s ST2) Encode() byte {

	var b byte
	if s.ControlMark {
		b |= 0x40
	}
	if s.DataErrorInField {
		b |= 0x20
	}
	if s.WrongCylinder {
		b |= 0x10
	}
	if s.BadCylinder {
		b |= 0x02
	}
	if s.MissingDataMark {
		b |= 0x01
	}
	return b
}

// ST3 reflects the drive side signal lines.
type ST3 struct {
	Fault          bool
	WriteProtected bool
	Ready          bool
	Track0         bool
	TwoSide        bool
	Head           int
	Drive          int
}

//
func (s ST3) Encode() byte {

	var b byte
	if s.Fault {
		b |= 0x80
	}
	if s.WriteProtected {
		b |= 0x40
	}
	if s.Ready {
		b |= 0x20
	}
	if s.Track0 {
		b |= 0x10
	}
	if s.TwoSide {
		b |= 0x08
	}
	if s.Head != 0 {
		b |= 0x04
	}
	return b | byte(s.Drive&0x03)
}

/*
	ResultSet holds the status/position bytes a primary command leaves
	behind, up to seven. It must be drained in order before the engine
	accepts a new command; reading past the end is a caller error.
*/
type ResultSet struct {
	data []byte
	pos  int
}

//
func (r *ResultSet) push(bytes ...byte) {
	r.data = append(r.data, bytes...)
}

//
func (r *ResultSet) Read() (byte, error) {
	if r.Drained() {
		return 0, fmt.Errorf("result set already drained")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

//
func (r *ResultSet) Drained() bool {
	return r.pos >= len(r.data)
}

//
func (r *ResultSet) Remaining() int {
	return len(r.data) - r.pos
}

//
func (r *ResultSet) reset() {
	r.data = r.data[:0]
	r.pos = 0
}
