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

// Opcode is a command opcode with the modifier bits masked off.
type Opcode byte

const (
	OpReadTrack        Opcode = 0x02
	OpSpecify          Opcode = 0x03
	OpSenseDriveStatus Opcode = 0x04
	OpWriteData        Opcode = 0x05
	OpReadData         Opcode = 0x06
	OpRecalibrate      Opcode = 0x07
	OpSenseInterrupt   Opcode = 0x08
	OpWriteDeleted     Opcode = 0x09
	OpReadID           Opcode = 0x0a
	OpReadDeleted      Opcode = 0x0c
	OpFormatTrack      Opcode = 0x0d
	OpDumpRegisters    Opcode = 0x0e
	OpSeek             Opcode = 0x0f
	OpVersion          Opcode = 0x10
	OpConfigure        Opcode = 0x13
)

// command byte modifier bits
const (
	FlagMultiTrack = 0x80
	FlagMFM        = 0x40
	FlagSkip       = 0x20
)

// opcodeMask strips the modifier bits off a raw command byte.
const opcodeMask = 0x1f

//
type commandSpec struct {
	name   string
	params int // fixed parameter byte count, enforced exactly
}

// The fixed parameter count per opcode, known before any parameter byte
// is accepted. Accepting more or fewer is a protocol violation.
var commandSpecs = map[Opcode]commandSpec{
	OpReadTrack:        {"read track", 8},
	OpSpecify:          {"specify", 2},
	OpSenseDriveStatus: {"sense drive status", 1},
	OpWriteData:        {"write data", 8},
	OpReadData:         {"read data", 8},
	OpRecalibrate:      {"recalibrate", 1},
	OpSenseInterrupt:   {"sense interrupt", 0},
	OpWriteDeleted:     {"write deleted data", 8},
	OpReadID:           {"read id", 1},
	OpReadDeleted:      {"read deleted data", 8},
	OpFormatTrack:      {"format track", 5},
	OpDumpRegisters:    {"dump registers", 0},
	OpSeek:             {"seek", 2},
	OpVersion:          {"version", 0},
	OpConfigure:        {"configure", 3},
}

/*
	Command is one decoded host command: the opcode, its modifier bits
	and the collected parameter bytes.
*/
type Command struct {
	Raw        byte
	Op         Opcode
	MultiTrack bool
	MFM        bool
	Skip       bool
	Params     []byte
}

// decodeCommand classifies a raw command byte. ok is false for opcodes
// the engine does not implement.
func decodeCommand(b byte) (Command, commandSpec, bool) {

	cmd := Command{
		Raw:        b,
		Op:         Opcode(b & opcodeMask),
		MultiTrack: b&FlagMultiTrack != 0,
		MFM:        b&FlagMFM != 0,
		Skip:       b&FlagSkip != 0,
	}

	spec, ok := commandSpecs[cmd.Op]
	return cmd, spec, ok
}

// address mark bytes following a sync run
const (
	markID          = 0xfe
	markData        = 0xfb
	markDeletedData = 0xf8
	markIndex       = 0xfc
)

// IdentificationField is one recovered ID field. It is only trusted
// after its CRC validated.
type IdentificationField struct {
	Cylinder int
	Head     int
	Sector   int
	SizeCode int
}

// SectorSize returns the field's sector size in bytes, 128 * 2^N.
func (f IdentificationField) SectorSize() int {
	return 128 << uint(f.SizeCode&0x03)
}
