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

	"github.com/retroflux/driveback/pkg/signal"
)

// Register offsets of the 82077AA-compatible host interface. The tape
// drive register is the one addition over the stock layout: its top bit
// selects tape mode, its low three bits address tape drive 1 through 3.
const (
	RegStatusA    = 0x0
	RegStatusB    = 0x1
	RegDigitalOut = 0x2
	RegTapeDrive  = 0x3
	RegMainStatus = 0x4 // data rate select on write
	RegFIFO       = 0x5
	RegDigitalIn  = 0x7 // configuration control on write
)

// main status register bits
const (
	MSRRequestForMaster = 0x80
	MSRDataToHost       = 0x40
	MSRNonDMA           = 0x20
	MSRCommandBusy      = 0x10
)

// digital input register bit
const DIRDiskChange = 0x80

// DigitalOut is the unpacked digital output register.
type DigitalOut struct {
	DriveSelect int
	Enabled     bool // inverse of the reset bit
	DMAEnable   bool
	MotorOn     [4]bool
}

//
func DecodeDigitalOut(b byte) DigitalOut {
	d := DigitalOut{
		DriveSelect: int(b & 0x03),
		Enabled:     b&0x04 != 0,
		DMAEnable:   b&0x08 != 0,
	}
	for i := 0; i < 4; i++ {
		d.MotorOn[i] = b&(0x10<<uint(i)) != 0
	}
	return d
}

//
func (d DigitalOut) Encode() byte {
	b := byte(d.DriveSelect & 0x03)
	if d.Enabled {
		b |= 0x04
	}
	if d.DMAEnable {
		b |= 0x08
	}
	for i := 0; i < 4; i++ {
		if d.MotorOn[i] {
			b |= 0x10 << uint(i)
		}
	}
	return b
}

// TapeSelect is the unpacked tape drive register.
type TapeSelect struct {
	TapeMode bool
	Drive    int // 1 through 3 when tape mode is on
}

//
func DecodeTapeSelect(b byte) (TapeSelect, error) {
	t := TapeSelect{
		TapeMode: b&0x80 != 0,
		Drive:    int(b & 0x07),
	}
	if t.TapeMode && (t.Drive < 1 || t.Drive > 3) {
		return t, fmt.Errorf("illegal tape drive number: %d", t.Drive)
	}
	return t, nil
}

//
func (t TapeSelect) Encode() byte {
	b := byte(t.Drive & 0x07)
	if t.TapeMode {
		b |= 0x80
	}
	return b
}

// RateFromSelect maps the two rate select bits of the DSR/CCR to a
// data rate, per the 82077AA encoding.
func RateFromSelect(b byte) signal.DataRate {

	switch b & 0x03 {

	case 0:
		return signal.Rate500K

	case 1:
		return signal.Rate300K

	case 2:
		return signal.Rate250K

	default:
		return signal.Rate1M
	}
}
