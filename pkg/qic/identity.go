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
	"github.com/retroflux/driveback/pkg/signal"
)

// DriveType is the decoded family of a detected tape drive.
type DriveType int

const (
	TypeUnknown DriveType = iota
	TypeQIC40
	TypeQIC80
	TypeQIC3010
	TypeQIC3020
)

//
func (t DriveType) String() string {
	switch t {
	case TypeQIC40:
		return "QIC-40"
	case TypeQIC80:
		return "QIC-80"
	case TypeQIC3010:
		return "QIC-3010"
	case TypeQIC3020:
		return "QIC-3020"
	}
	return "unknown"
}

/*
	DriveIdentity is the outcome of the auto-detect sequence: the raw
	identification bytes as captured off the wire and the capability set
	decoded from them. Fields whose phase timed out stay at their zero
	value with the matching Known flag off.
*/
type DriveIdentity struct {
	Present bool

	Vendor      uint16
	VendorKnown bool
	Model       byte
	ModelKnown  bool
	Rom         byte
	RomKnown    bool
	Config      byte
	ConfigKnown bool

	Type      DriveType
	Name      string
	MaxTracks int
	Rates     byte // supported-rate bitmap, signal.DataRate.Mask bits
}

//
type vendorEntry struct {
	vendor uint16
	name   string
	typ    DriveType
	tracks int
	rates  byte
}

// the recognized vendors; model resolution below refines within a
// vendor where the drive families differ
var vendorTable = []vendorEntry{
	{0x0047, "Colorado", TypeQIC80, 28,
		signal.Rate250K.Mask() | signal.Rate500K.Mask()},
	{0x0011, "Conner", TypeQIC80, 28,
		signal.Rate250K.Mask() | signal.Rate500K.Mask() | signal.Rate1M.Mask()},
	{0x0005, "Archive", TypeQIC40, 20,
		signal.Rate250K.Mask() | signal.Rate500K.Mask()},
	{0x0119, "Iomega", TypeQIC3010, 40,
		signal.Rate500K.Mask() | signal.Rate1M.Mask()},
	{0x0333, "Exabyte", TypeQIC3020, 40,
		signal.Rate500K.Mask() | signal.Rate1M.Mask()},
}

// generic fallback capabilities for unrecognized vendors
const (
	genericTracks = 28
)

/*
	decodeIdentity fills in the capability fields of an identity from its
	raw bytes. Unknown vendors get a conservative generic profile; a
	known vendor's profile may still be widened by the config byte's rate
	bits when that phase succeeded.
*/
func decodeIdentity(id *DriveIdentity) {

	id.Type = TypeUnknown
	id.Name = "generic"
	id.MaxTracks = genericTracks
	id.Rates = signal.Rate250K.Mask() | signal.Rate500K.Mask()

	if id.VendorKnown {
		for _, e := range vendorTable {
			if e.vendor == id.Vendor {
				id.Type = e.typ
				id.Name = e.name
				id.MaxTracks = e.tracks
				id.Rates = e.rates
				break
			}
		}
	}

	// high model bit marks the 3000-series variant of a QIC-80 family
	// drive
	if id.ModelKnown && id.Model&0x80 != 0 && id.Type == TypeQIC80 {
		id.Type = TypeQIC3010
		id.MaxTracks = 40
	}

	if id.ConfigKnown && id.Config&0x40 != 0 {
		id.Rates |= signal.Rate1M.Mask()
	}
}
